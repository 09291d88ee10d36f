package models

import "time"

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

type User struct {
	Email             string
	FirstName         string
	PassHash          []byte
	Gender            string
	IsVerified        bool
	VerificationToken string
	CreatedAt         time.Time
}

// PublicUser is the part of an account that may leave the service.
type PublicUser struct {
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		FirstName: u.FirstName,
		Email:     u.Email,
		Gender:    u.Gender,
	}
}

type Entry struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Password    string    `json:"password"`
	Description string    `json:"description"`
	FileUpload  string    `json:"fileUpload"`
	UserEmail   string    `json:"userEmail"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EntryFields are the caller-controlled parts of an entry.
type EntryFields struct {
	URL         string
	Password    string
	Description string
	FileUpload  string
}

const PurposeEmailVerification = "email_verification"

type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
