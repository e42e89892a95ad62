package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/models"
	"github.com/ragbot/ragchat/internal/store/redisstore"
)

var (
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrEmailTaken         = errors.New("email taken by another user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordComplexity = errors.New("password too weak")
	ErrUserNotFound       = errors.New("user not found")
)

type Service struct {
	db         *gorm.DB
	revocation *redisstore.Store
	maxAge     time.Duration
}

// NewService wires the auth service. revocation may be nil; logout then
// only clears the cookie.
func NewService(db *gorm.DB, revocation *redisstore.Store, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Service{db: db, revocation: revocation, maxAge: maxAge}
}

func (s *Service) MaxAge() time.Duration { return s.maxAge }

// isDuplicateKey reports whether err is a unique-constraint violation, in
// the forms the mysql and sqlite drivers raise it.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}

func sessionUserFor(u *models.User) SessionUser {
	return SessionUser{
		ID:        strconv.FormatUint(u.ID, 10),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Signup creates a user and issues a session. The uniqueness check and the
// insert are two separate statements; a concurrent signup with the same
// email can still race past the check (known issue, the unique index on
// users.email is the last line of defense).
func (s *Service) Signup(ctx context.Context, email, password, firstName, lastName string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !ValidateComplexity(password) {
		return Session{}, ErrPasswordComplexity
	}

	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).Count(&cnt).Error; err != nil {
		return Session{}, err
	}
	if cnt > 0 {
		return Session{}, ErrDuplicateEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user := models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			// unique index violation from the race described above
			return Session{}, ErrDuplicateEmail
		}
		return Session{}, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("user signed up")
	return NewSession(sessionUserFor(&user)), nil
}

// Login verifies the password digest and issues a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return NewSession(sessionUserFor(&user)), nil
}

// Logout revokes the session id server-side for the rest of its cookie
// lifetime. Without the revocation store a stolen cookie stays valid until
// max-age.
func (s *Service) Logout(ctx context.Context, sess Session) {
	if s.revocation == nil {
		return
	}
	if err := s.revocation.RevokeSession(ctx, sess.ID, s.maxAge); err != nil {
		logrus.WithError(err).Warn("session revocation failed")
	}
}

// Resolve re-reads the User row on every call so profile edits stay visible
// without re-login. It fails soft: any missing, malformed, revoked or
// orphaned session resolves to (zero, false).
func (s *Service) Resolve(ctx context.Context, cookieValue string) (Session, *models.User, bool) {
	sess, ok := DecodeSession(cookieValue)
	if !ok {
		return Session{}, nil, false
	}

	if s.revocation != nil {
		revoked, err := s.revocation.IsSessionRevoked(ctx, sess.ID)
		if err != nil {
			logrus.WithError(err).Warn("revocation check failed, treating session as valid")
		} else if revoked {
			return Session{}, nil, false
		}
	}

	uid, err := strconv.ParseUint(sess.User.ID, 10, 64)
	if err != nil {
		return Session{}, nil, false
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, uid).Error; err != nil {
		return Session{}, nil, false
	}

	// rebuild with fresh fields; the embedded cookie copy may be stale
	sess.User = sessionUserFor(&user)
	return sess, &user, true
}

// CheckEmail reports whether a user with that email exists (case-insensitive).
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	var cnt int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&cnt).Error
	return cnt > 0, err
}

// UpdateProfile mutates name/email and returns a session carrying the
// refreshed fields; callers must re-issue the cookie from it.
func (s *Service) UpdateProfile(ctx context.Context, sess Session, firstName, lastName, email string) (Session, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	uid, err := strconv.ParseUint(sess.User.ID, 10, 64)
	if err != nil {
		return Session{}, nil, ErrUserNotFound
	}

	if email != sess.User.Email {
		var cnt int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", email, uid).Count(&cnt).Error; err != nil {
			return Session{}, nil, err
		}
		if cnt > 0 {
			return Session{}, nil, ErrEmailTaken
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, nil, ErrUserNotFound
		}
		return Session{}, nil, err
	}

	user.FirstName = strings.TrimSpace(firstName)
	user.LastName = strings.TrimSpace(lastName)
	user.Email = email
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return Session{}, nil, err
	}

	sess.User = sessionUserFor(&user)
	return sess, &user, nil
}

// ChangePassword re-verifies the current password before accepting the new one.
func (s *Service) ChangePassword(ctx context.Context, sess Session, currentPassword, newPassword string) error {
	if !ValidateComplexity(newPassword) {
		return ErrPasswordComplexity
	}

	uid, err := strconv.ParseUint(sess.User.ID, 10, 64)
	if err != nil {
		return ErrUserNotFound
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error
}
