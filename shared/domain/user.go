package domain

import "time"

type User struct {
	Id        UserId    `json:"id"`
	Username  Username  `json:"username"`
	Password  Password  `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type Credentials struct {
	Username Username
	Password Password
}
