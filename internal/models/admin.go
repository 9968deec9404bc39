package models

type Admin struct {
	UserId          int64
	DisplayName     string
	AuthenticatedAt int64
}
