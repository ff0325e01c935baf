package domain

type (
	UserId   = int64
	Username = string
	Password = string

	ThreadId = int64

	MsgId   = int64
	MsgText = string
)
