package anndb

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

var ErrInvalidEmail = errors.New("Invalid email address")

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// GetOrCreateUser finds a user by email, creating one on first sight.
// Accounts are created on first login.
func (a *AnnDB) GetOrCreateUser(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	user := User{}
	err := a.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = User{
		Email:     email,
		CreatedAt: dbh.MakeIntTime(time.Now()),
	}
	if err := a.DB.Create(&user).Error; err != nil {
		if dbh.IsKeyViolation(err) {
			// Two racing first logins with the same email
			err = a.DB.Where("email = ?", email).First(&user).Error
		}
		return &user, err
	}
	a.Log.Infof("Created user %v (%v)", user.ID, user.Email)
	return &user, nil
}

func (a *AnnDB) GetUser(id int64) (*User, error) {
	user := User{}
	if err := a.DB.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *AnnDB) FindUserByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user := User{}
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *AnnDB) AllUsers() ([]User, error) {
	var users []User
	return users, a.DB.Order("email").Find(&users).Error
}

// SetUserPassword stores an already-hashed password (see pkg/pwdhash)
func (a *AnnDB) SetUserPassword(userID int64, passwordHash string) error {
	return a.DB.Model(&User{}).Where("id = ?", userID).Update("password", passwordHash).Error
}
