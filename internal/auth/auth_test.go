package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/readcoach/internal/adapters/repository"
	"github.com/okian/readcoach/internal/auth"
	"github.com/okian/readcoach/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const secret = "0123456789abcdef0123456789abcdef"

func newService(now *time.Time, opts ...auth.Option) *auth.Service {
	users := repository.NewUsers(repository.NewMemoryStore())
	base := []auth.Option{
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithLogger(logger.NewNop()),
		auth.WithClock(func() time.Time { return *now }),
	}
	s, err := auth.New(users, secret, append(base, opts...)...)
	So(err, ShouldBeNil)
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	Convey("Given an auth service", t, func() {
		now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
		s := newService(&now)
		ctx := context.Background()

		Convey("When a user registers", func() {
			u, err := s.Register(ctx, " alice ", "alice@example.com", "s3cret-pass")

			Convey("Then the password is stored only as a hash", func() {
				So(err, ShouldBeNil)
				So(u.ID, ShouldNotBeEmpty)
				So(u.Username, ShouldEqual, "alice")
				So(u.PasswordHash, ShouldNotEqual, "s3cret-pass")
				So(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")), ShouldBeNil)
			})

			Convey("And logs in with the right password", func() {
				now = now.Add(time.Hour)
				got, err := s.Login(ctx, "alice", "s3cret-pass")

				Convey("Then the login time is recorded", func() {
					So(err, ShouldBeNil)
					So(got.ID, ShouldEqual, u.ID)
					So(got.LastLoginAt, ShouldNotBeNil)
					So(*got.LastLoginAt, ShouldEqual, now)
				})
			})

			Convey("And logs in with their email in another case", func() {
				got, err := s.Login(ctx, " Alice@Example.com ", "s3cret-pass")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, u.ID)
			})

			Convey("And logs in with an unknown email", func() {
				_, err := s.Login(ctx, "alice@elsewhere.com", "s3cret-pass")
				So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
			})

			Convey("And logs in with a wrong password", func() {
				_, err := s.Login(ctx, "alice", "nope")
				So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
			})

			Convey("And the username is registered again in another case", func() {
				_, err := s.Register(ctx, "ALICE", "other@example.com", "pw")
				So(errors.Is(err, auth.ErrUserExists), ShouldBeTrue)
			})

			Convey("And the email is registered again", func() {
				_, err := s.Register(ctx, "bob", "alice@example.com", "pw")
				So(errors.Is(err, auth.ErrUserExists), ShouldBeTrue)

				Convey("Then the failed attempt does not reserve the username", func() {
					_, err := s.Register(ctx, "bob", "bob@example.com", "pw")
					So(err, ShouldBeNil)
				})
			})
		})

		Convey("When logging in as an unknown user", func() {
			_, err := s.Login(ctx, "ghost", "pw")
			So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When registration input is incomplete or malformed", func() {
			for _, in := range [][3]string{
				{"", "a@example.com", "pw"},
				{"a", "", "pw"},
				{"a", "a@example.com", ""},
				{"a", "not-an-email", "pw"},
				{"a@b", "a@example.com", "pw"},
				{"a", "a@example.com", strings.Repeat("x", 73)},
			} {
				_, err := s.Register(ctx, in[0], in[1], in[2])
				So(errors.Is(err, auth.ErrInvalidInput), ShouldBeTrue)
			}
		})
	})
}

func TestTokens(t *testing.T) {
	Convey("Given an auth service and a registered user", t, func() {
		now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
		s := newService(&now, auth.WithTokenTTL(time.Hour))
		u, err := s.Register(context.Background(), "carol", "carol@example.com", "pw")
		So(err, ShouldBeNil)

		Convey("When a token is issued", func() {
			token, exp, err := s.IssueToken(u)
			So(err, ShouldBeNil)
			So(exp, ShouldEqual, now.Add(time.Hour))

			Convey("Then it verifies to the user", func() {
				claims, err := s.Verify(token)
				So(err, ShouldBeNil)
				So(claims.Subject, ShouldEqual, u.ID)
				So(claims.Username, ShouldEqual, "carol")
			})

			Convey("Then it is rejected after expiry", func() {
				now = now.Add(2 * time.Hour)
				_, err := s.Verify(token)
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("Then a tampered token is rejected", func() {
				_, err := s.Verify(token + "x")
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("Then another secret rejects it", func() {
				other, err := auth.New(repository.NewUsers(repository.NewMemoryStore()), "ffffffffffffffffffffffff",
					auth.WithLogger(logger.NewNop()), auth.WithClock(func() time.Time { return now }))
				So(err, ShouldBeNil)
				_, err = other.Verify(token)
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the token is garbage", func() {
			_, err := s.Verify("not.a.token")
			So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
		})
	})

	Convey("Given a short secret", t, func() {
		_, err := auth.New(nil, "short")
		So(errors.Is(err, auth.ErrInvalidSecret), ShouldBeTrue)
	})

	Convey("Given a request context", t, func() {
		_, ok := auth.UserFromContext(context.Background())
		So(ok, ShouldBeFalse)
		id, ok := auth.UserFromContext(auth.ContextWithUser(context.Background(), "u1"))
		So(ok, ShouldBeTrue)
		So(id, ShouldEqual, "u1")
	})
}
