package entity

import (
	"time"
)

// UserProfile is the slice of a marketplace account the messaging side needs.
type UserProfile struct {
	ID     string `json:"id" firestore:"id" bson:"_id"`
	Name   string `json:"name" firestore:"name" bson:"name"`
	Avatar string `json:"avatar,omitempty" firestore:"avatar,omitempty" bson:"avatar,omitempty"`
}

// User mirrors the stored account document. Only the profile fields are read.
type User struct {
	ID        string    `json:"id" firestore:"id" bson:"_id"`
	Email     string    `json:"email" firestore:"email" bson:"email"`
	Name      string    `json:"name" firestore:"name" bson:"name"`
	Username  string    `json:"username,omitempty" firestore:"username,omitempty" bson:"username,omitempty"`
	Avatar    string    `json:"avatar,omitempty" firestore:"avatar,omitempty" bson:"avatar,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty" firestore:"photoURL,omitempty" bson:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

func (u *User) Profile() *UserProfile {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	avatar := u.Avatar
	if avatar == "" {
		avatar = u.PhotoURL
	}
	return &UserProfile{ID: u.ID, Name: name, Avatar: avatar}
}
