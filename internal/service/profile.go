package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/imagestore"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

const placeholderImageURL = "https://placehold.co/500x500.jpg?text="

// PlaceholderImageURL is the image shown for users who never uploaded one.
func PlaceholderImageURL(role model.Role) string {
	return placeholderImageURL + strings.ToUpper(string(role))
}

// Profile is the public projection of a user: what /api/me and /api/mentors
// return. It never carries the password hash.
type Profile struct {
	ID      string         `json:"id"`
	Email   string         `json:"email"`
	Role    model.Role     `json:"role"`
	Profile ProfileDetails `json:"profile"`
}

// ProfileDetails holds the editable part. MentorDetails is nil for mentees,
// which drops its fields from the JSON entirely.
type ProfileDetails struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	ImageURL string `json:"imageUrl"`
	*MentorDetails
}

type MentorDetails struct {
	Skills     []string `json:"skills"`
	Experience *int     `json:"experience"`
	HourlyRate *float64 `json:"hourlyRate"`
}

// ProjectUser builds the public profile of u.
func ProjectUser(u *model.User) Profile {
	p := Profile{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Profile: ProfileDetails{
			Name:     u.Name,
			Bio:      u.Bio,
			ImageURL: PlaceholderImageURL(u.Role),
		},
	}
	if u.ProfileImage != "" {
		p.Profile.ImageURL = fmt.Sprintf("/api/images/%s/%s", u.Role, u.ID)
	}
	if u.IsMentor() {
		skills := u.Skills
		if skills == nil {
			skills = []string{}
		}
		p.Profile.MentorDetails = &MentorDetails{
			Skills:     skills,
			Experience: u.Experience,
			HourlyRate: u.HourlyRate,
		}
	}
	return p
}

// ProfileUpdate carries the fields a user wants to change. nil means "leave as
// is". Skills, Experience and HourlyRate are silently ignored for mentees.
type ProfileUpdate struct {
	Name       *string
	Bio        *string
	Skills     []string
	Experience *int
	HourlyRate *float64
	Image      *string // base64 or data URL
}

// ProfileService manages the caller's own profile, the mentor directory and
// profile images.
type ProfileService struct {
	users  repository.UserRepository
	images *imagestore.Store
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, images *imagestore.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, images: images, logger: logger}
}

// Me returns the caller's profile.
func (s *ProfileService) Me(ctx context.Context, caller model.Caller) (Profile, error) {
	u, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return Profile{}, fmt.Errorf("service/profile: loading user %s: %w", caller.UserID, err)
	}
	return ProjectUser(u), nil
}

// Update applies upd to the caller's profile. Email and role are not part of
// ProfileUpdate, so they cannot change here.
func (s *ProfileService) Update(ctx context.Context, caller model.Caller, upd ProfileUpdate) (Profile, error) {
	u, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return Profile{}, fmt.Errorf("service/profile: loading user %s: %w", caller.UserID, err)
	}

	var details []string
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		details = append(details, validateName(name)...)
		u.Name = name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			details = append(details, "bio must be at most 1000 characters")
		}
		u.Bio = bio
	}
	if u.IsMentor() {
		if upd.Skills != nil {
			skills, errs := cleanSkills(upd.Skills)
			details = append(details, errs...)
			u.Skills = skills
		}
		if upd.Experience != nil {
			if *upd.Experience < 0 {
				details = append(details, "experience must be zero or more")
			}
			u.Experience = upd.Experience
		}
		if upd.HourlyRate != nil {
			if *upd.HourlyRate < 0 {
				details = append(details, "hourlyRate must be zero or more")
			}
			u.HourlyRate = upd.HourlyRate
		}
	}
	if err := invalid(details); err != nil {
		return Profile{}, err
	}

	if upd.Image != nil && strings.TrimSpace(*upd.Image) != "" {
		data, err := imagestore.DecodeBase64(*upd.Image)
		if err != nil {
			return Profile{}, err
		}
		if err := s.replaceImage(ctx, u, data, imagestore.InlineLimits); err != nil {
			return Profile{}, err
		}
		return ProjectUser(u), nil
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return Profile{}, fmt.Errorf("service/profile: updating user %s: %w", u.ID, err)
	}
	return ProjectUser(u), nil
}

// UploadImage replaces the caller's profile image with data.
func (s *ProfileService) UploadImage(ctx context.Context, caller model.Caller, data []byte) (Profile, error) {
	u, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return Profile{}, fmt.Errorf("service/profile: loading user %s: %w", caller.UserID, err)
	}
	if err := s.replaceImage(ctx, u, data, imagestore.UploadLimits); err != nil {
		return Profile{}, err
	}
	return ProjectUser(u), nil
}

// replaceImage stores the new image, persists u (with any other pending field
// changes) and only then deletes the old file. If the database write fails the
// new file is removed and the old one is kept.
func (s *ProfileService) replaceImage(ctx context.Context, u *model.User, data []byte, lim imagestore.Limits) error {
	name, err := s.images.Save(data, lim)
	if err != nil {
		return err
	}

	old := u.ProfileImage
	u.ProfileImage = name
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if delErr := s.images.Delete(name); delErr != nil {
			s.logger.Warn("orphaned profile image", slog.String("file", name), slog.Any("error", delErr))
		}
		u.ProfileImage = old
		return fmt.Errorf("service/profile: updating user %s: %w", u.ID, err)
	}

	if old != "" {
		if err := s.images.Delete(old); err != nil {
			s.logger.Warn("failed to delete previous profile image",
				slog.String("userID", u.ID), slog.String("file", old), slog.Any("error", err))
		}
	}
	s.logger.Info("profile image updated", slog.String("userID", u.ID))
	return nil
}

// ImagePath returns the file backing /api/images/{role}/{id}. An empty path
// with a nil error means the user has no image (or does not exist) and the
// placeholder should be served instead.
func (s *ProfileService) ImagePath(ctx context.Context, role model.Role, userID string) (string, error) {
	if !role.Valid() {
		return "", apperror.NotFound("image", string(role)+"/"+userID)
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("service/profile: loading user %s: %w", userID, err)
	}
	if u.Role != role || u.ProfileImage == "" {
		return "", nil
	}
	path, err := s.images.Path(u.ProfileImage)
	if err != nil {
		return "", fmt.Errorf("service/profile: resolving image of %s: %w", userID, err)
	}
	return path, nil
}

// ListMentors returns the public profiles of active mentors. Unknown order_by
// values fall back to id order.
func (s *ProfileService) ListMentors(ctx context.Context, skill, orderBy string) ([]Profile, error) {
	filter := repository.MentorFilter{Skill: strings.TrimSpace(skill)}
	switch repository.MentorOrder(orderBy) {
	case repository.OrderByName, repository.OrderBySkill:
		filter.OrderBy = repository.MentorOrder(orderBy)
	}

	mentors, err := s.users.ListMentors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing mentors: %w", err)
	}

	out := make([]Profile, 0, len(mentors))
	for i := range mentors {
		out = append(out, ProjectUser(&mentors[i]))
	}
	return out, nil
}
