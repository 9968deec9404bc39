package models

type Referral struct {
	Id           int64
	InviterId    int64
	InvitedId    int64
	Acknowledged bool
	CreatedAt    int64
}
