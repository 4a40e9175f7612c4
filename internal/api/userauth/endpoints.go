// Package userauth is the endpoint group for authentication, the password
// reset and invitation flows, the auth-metadata profile, and the profile
// picture in object storage.
package userauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

// Endpoint names, used as cache keys and lifecycle event sources. The
// notification layer matches on these.
const (
	EndpointLogout                 = "userAuth/logout"
	EndpointSendEmailLinkSignin    = "userAuth/sendEmailLinkSignin"
	EndpointEmailSignup            = "userAuth/emailSignup"
	EndpointEmailLogin             = "userAuth/emailLogin"
	EndpointSendResetPassword      = "userAuth/sendResetPasswordEmail"
	EndpointSetNewPassword         = "userAuth/setNewPassword"
	EndpointUploadProfilePicture   = "userAuth/uploadProfilePicture"
	EndpointRemoveProfilePicture   = "userAuth/removeProfilePicture"
	EndpointGetUserProfileDetails  = "userAuth/getUserProfileDetails"
	EndpointUpdateUserProfile      = "userAuth/updateUserProfileDetails"
	profilePicturePath             = "%s/profile-picture"
	signedURLTTLSeconds            = 600000
	profilePictureSize             = 350
)

// ErrUserNotInDatabase is the business-rule failure for email flows against
// an address with no profile row.
var ErrUserNotInDatabase = errors.New(
	"User doesn't exist in Database, Please contact Admin at alumni@aspari.fr")

// ResetOutcome is the payload of a successful password-reset request. The
// toast text comes from it.
type ResetOutcome struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ToastMessage satisfies the notification layer's payload contract.
func (o ResetOutcome) ToastMessage() (string, string) {
	return o.Title, o.Description
}

// Config holds the redirect base for email flows.
type Config struct {
	AppDomainURL string
}

// Service exposes the auth endpoints.
type Service struct {
	sb    *client.Client
	cache *query.Cache
	cfg   Config
}

// NewService creates the endpoint group.
func NewService(sb *client.Client, cache *query.Cache, cfg Config) *Service {
	return &Service{sb: sb, cache: cache, cfg: cfg}
}

// Logout revokes the session. Listeners on the auth client clear identity.
func (s *Service) Logout(ctx context.Context) (string, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointLogout,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (string, error) {
		if err := s.sb.Auth().SignOut(ctx); err != nil {
			return "", err
		}
		return "logged out successfully", nil
	})
}

// SendEmailLinkSignin sends a magic sign-in link, but only to addresses with
// an existing profile row.
func (s *Service) SendEmailLinkSignin(ctx context.Context, email string) (string, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint: EndpointSendEmailLinkSignin,
	}, func(ctx context.Context) (string, error) {
		exists, err := s.profileExists(ctx, email)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", ErrUserNotInDatabase
		}
		err = s.sb.Auth().SignInWithOTP(ctx, email, client.OTPOptions{
			ShouldCreateUser: true,
			EmailRedirectTo:  s.cfg.AppDomainURL + "/reset-password",
		})
		if err != nil {
			return "", err
		}
		return "Login Link sent to your email", nil
	})
}

// EmailSignup creates an account with email confirmation.
func (s *Service) EmailSignup(ctx context.Context, email, password string) (*client.Session, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointEmailSignup,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (*client.Session, error) {
		return s.sb.Auth().SignUp(ctx, email, password, client.SignUpOptions{
			EmailRedirectTo: s.cfg.AppDomainURL + "/login",
		})
	})
}

// EmailLogin signs in with email and password.
func (s *Service) EmailLogin(ctx context.Context, email, password string) (*client.Session, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointEmailLogin,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (*client.Session, error) {
		return s.sb.Auth().SignInWithPassword(ctx, email, password)
	})
}

// SendResetPasswordEmail decides between three mutually exclusive outcomes:
// an account holder gets a reset link, a profile-only user gets an
// invitation, and an unknown address is a hard failure. Both existence
// checks run before any email is sent.
func (s *Service) SendResetPasswordEmail(ctx context.Context, email string) (ResetOutcome, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointSendResetPassword,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (ResetOutcome, error) {
		inProfileTable, err := s.profileExists(ctx, email)
		if err != nil {
			return ResetOutcome{}, err
		}
		hasAccount, err := s.accountExists(ctx, email)
		if err != nil {
			return ResetOutcome{}, err
		}

		redirect := client.ResetOptions{RedirectTo: s.cfg.AppDomainURL + "/reset-password"}
		switch {
		case inProfileTable && hasAccount:
			if err := s.sb.Auth().ResetPasswordForEmail(ctx, email, redirect); err != nil {
				return ResetOutcome{}, err
			}
			return ResetOutcome{
				Title:       "Password reset link sent to your email",
				Description: "Please check email and follow instructions.",
			}, nil
		case inProfileTable:
			if err := s.sb.Auth().InviteUserByEmail(ctx, email, redirect); err != nil {
				return ResetOutcome{}, err
			}
			return ResetOutcome{
				Title:       "Invitation sent to your email address",
				Description: "Please check email and follow instructions.",
			}, nil
		default:
			return ResetOutcome{}, ErrUserNotInDatabase
		}
	})
}

// SetNewPassword replaces the current user's password.
func (s *Service) SetNewPassword(ctx context.Context, password string) (string, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointSetNewPassword,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (string, error) {
		if _, err := s.sb.Auth().UpdateUser(ctx, client.UserAttributes{Password: password}); err != nil {
			return "", err
		}
		return "Successfully reset Password", nil
	})
}

// UploadProfilePicture stores the image under the user's folder and returns
// a signed thumbnail URL.
func (s *Service) UploadProfilePicture(ctx context.Context, uid string, data []byte) (string, error) {
	return query.RunAs(ctx, s.cache, query.Mutation{
		Endpoint:    EndpointUploadProfilePicture,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (string, error) {
		path := fmt.Sprintf(profilePicturePath, uid)
		bucket := s.sb.Storage().From(domain.UsersBucket)

		err := bucket.Upload(ctx, path, data, client.UploadOptions{
			ContentType: "image/*",
		})
		if err != nil {
			return "", err
		}
		return bucket.CreateSignedURL(ctx, path, signedURLTTLSeconds, &client.Transform{
			Width:  profilePictureSize,
			Height: profilePictureSize,
			Resize: "cover",
		})
	})
}

// RemoveProfilePicture deletes the stored image.
func (s *Service) RemoveProfilePicture(ctx context.Context, uid string) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointRemoveProfilePicture,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (any, error) {
		path := fmt.Sprintf(profilePicturePath, uid)
		return nil, s.sb.Storage().From(domain.UsersBucket).Remove(ctx, []string{path})
	})
	return err
}

// GetUserProfileDetails reads the profile out of the auth user's metadata.
// Provides the User tag.
func (s *Service) GetUserProfileDetails(ctx context.Context) (domain.ProfileData, error) {
	key := query.Key(EndpointGetUserProfileDetails, nil)
	return query.FetchAs(ctx, s.cache, key, []query.Tag{query.TagUser},
		func(ctx context.Context) (domain.ProfileData, error) {
			user, err := s.sb.Auth().GetUser(ctx)
			if err != nil {
				return domain.ProfileData{}, err
			}
			return profileFromUser(user)
		})
}

// UpdateUserProfileDetails sends a full metadata replace built from the
// given profile. Sub and email stay what the backend says they are.
func (s *Service) UpdateUserProfileDetails(ctx context.Context, profile domain.ProfileData) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointUpdateUserProfile,
		Invalidates: []query.Tag{query.TagUser},
	}, func(ctx context.Context) (any, error) {
		user, err := s.sb.Auth().GetUser(ctx)
		if err != nil {
			return nil, err
		}
		profile.Sub = user.ID
		profile.Email = user.Email

		metadata, err := profileToMetadata(profile)
		if err != nil {
			return nil, err
		}
		_, err = s.sb.Auth().UpdateUser(ctx, client.UserAttributes{Data: metadata})
		return nil, err
	})
	return err
}

func (s *Service) profileExists(ctx context.Context, email string) (bool, error) {
	var row struct {
		Email string `json:"email"`
	}
	err := s.sb.From(domain.ProfileTable).
		Select("email").
		Eq("email", email).
		Single().
		Get(ctx, &row)
	if errors.Is(err, client.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) accountExists(ctx context.Context, email string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.sb.From(domain.AuthUserMirrorTable).
		Select("id").
		Eq("email", email).
		Get(ctx, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func profileFromUser(user *client.User) (domain.ProfileData, error) {
	var profile domain.ProfileData
	if user.UserMetadata != nil {
		raw, err := json.Marshal(user.UserMetadata)
		if err != nil {
			return profile, fmt.Errorf("marshal metadata: %w", err)
		}
		if err := json.Unmarshal(raw, &profile); err != nil {
			return profile, fmt.Errorf("decode profile: %w", err)
		}
	}
	profile.Sub = user.ID
	profile.Email = user.Email
	return profile, nil
}

func profileToMetadata(profile domain.ProfileData) (map[string]any, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata, nil
}
