// Package invite redeems group invitation tokens.
package invite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HE-Arc/Mind-vs-Wild/internal/guard"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/client"
	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

var (
	// ErrNotFound means the backend does not know the token.
	ErrNotFound = errors.New("invite: not found")
	// ErrUnusable means the invite expired or was already consumed.
	ErrUnusable = errors.New("invite: expired or already used")
	// ErrNotForYou means the invite names another user.
	ErrNotForYou = errors.New("invite: addressed to another user")
	// ErrAlreadyMember means the caller is already in the group.
	ErrAlreadyMember = errors.New("invite: already a member")
	// ErrEmptyToken is returned for a blank token.
	ErrEmptyToken = errors.New("invite: empty token")
)

// LoginRequiredError is returned when there is no session. ReturnTo is the
// path to come back to after logging in.
type LoginRequiredError struct {
	ReturnTo string
}

func (e *LoginRequiredError) Error() string {
	return "invite: login required (return to " + e.ReturnTo + ")"
}

// ErrLoginRequired matches any *LoginRequiredError with errors.Is.
var ErrLoginRequired = &LoginRequiredError{}

// Is makes errors.Is(err, ErrLoginRequired) hold for every LoginRequiredError.
func (e *LoginRequiredError) Is(target error) bool {
	_, ok := target.(*LoginRequiredError)
	return ok
}

// Session is what the resolver needs from the session manager.
type Session interface {
	guard.AuthChecker
	Client() (*client.Client, error)
}

// Merger receives groups joined through an invite. A merge is dropped when
// the caches were reset after gen was read.
type Merger interface {
	Generation() uint64
	MergeGroup(gen uint64, g domain.Group) bool
}

// Resolver accepts invites on behalf of the signed-in user.
type Resolver struct {
	sess Session
	dir  Merger
	log  *zap.Logger
}

// NewResolver returns a Resolver merging joined groups into dir.
func NewResolver(sess Session, dir Merger, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{sess: sess, dir: dir, log: log.Named("invite")}
}

// AcceptInvite redeems token and merges the joined group into the directory.
// Invite failures never touch the session.
func (r *Resolver) AcceptInvite(ctx context.Context, token string) (domain.Group, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Group{}, ErrEmptyToken
	}
	if !r.sess.IsAuthenticated(ctx) {
		return domain.Group{}, &LoginRequiredError{ReturnTo: guard.AcceptInvite(token)}
	}
	gen := r.dir.Generation()
	c, err := r.sess.Client()
	if err != nil {
		return domain.Group{}, &LoginRequiredError{ReturnTo: guard.AcceptInvite(token)}
	}

	g, err := c.AcceptInvite(ctx, token)
	if err != nil {
		if cerr := classify(err); cerr != nil {
			r.log.Info("invite refused", zap.Error(cerr))
			if msg := client.Message(err); msg != "" {
				return domain.Group{}, fmt.Errorf("%w: %s", cerr, msg)
			}
			return domain.Group{}, cerr
		}
		return domain.Group{}, fmt.Errorf("invite.AcceptInvite: %w", err)
	}
	if !r.dir.MergeGroup(gen, *g) {
		r.log.Debug("joined group not cached, session changed meanwhile", zap.Int64("group_id", g.ID))
	}
	r.log.Info("invite accepted", zap.Int64("group_id", g.ID))
	return *g, nil
}

func classify(err error) error {
	switch {
	case client.IsStatus(err, http.StatusNotFound):
		return ErrNotFound
	case client.IsStatus(err, http.StatusForbidden):
		return ErrNotForYou
	case client.IsStatus(err, http.StatusBadRequest):
		if alreadyMember(client.Message(err)) {
			return ErrAlreadyMember
		}
		return ErrUnusable
	default:
		return nil
	}
}

// alreadyMember recognises the backend's "already a member" detail, which it
// sends in French.
func alreadyMember(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "déjà membre") || strings.Contains(msg, "already a member")
}
