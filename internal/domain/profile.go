package domain

// Identity is the ambient authenticated-user projection. The empty value is
// the signed-out state.
type Identity struct {
	UID            string `json:"uid"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

// IsEmpty reports whether no user is signed in.
func (i Identity) IsEmpty() bool {
	return i.UID == ""
}

// ProfileData is the user profile kept in auth user metadata. Sub and Email
// are immutable; the rest is updated by merging a partial sub-object into the
// previously fetched whole and sending a full replace.
type ProfileData struct {
	Sub            string      `json:"sub"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	BirthDate      string      `json:"birth_date"`
	PhoneNumber    string      `json:"phone_number"`
	Bio            string      `json:"bio"`
	ProfilePicture string      `json:"profile_picture"`
	Address        Address     `json:"address"`
	Profession     Profession  `json:"profession"`
	University     University  `json:"university"`
	SocialMedia    SocialMedia `json:"social_media"`
}

// Address is the profile address sub-object.
type Address struct {
	Country string `json:"country"`
	City    string `json:"city"`
	State   string `json:"state"`
	Address string `json:"address"`
}

// Profession is the profile profession sub-object.
type Profession struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
	Industry string `json:"industry"`
}

// University is the profile university sub-object.
type University struct {
	UniID      string `json:"uni_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Batch      string `json:"batch"`
}

// SocialMedia is the profile social links sub-object.
type SocialMedia struct {
	LinkedIn  string `json:"linkedin"`
	Twitter   string `json:"twitter"`
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
}
