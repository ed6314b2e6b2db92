// Package resolver maps simulated usernames to user ids.
//
// Known usernames resolve to their own record. Unknown usernames are assigned
// an existing record deterministically: the MD5 digest of the name, read as a
// 128-bit unsigned integer, modulo the directory size selects a record in
// dataset order. The same name always maps to the same record for a given
// directory.
package resolver

import (
	"fmt"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// Request field names read and written by Apply.
const (
	FieldUserName       = "userName"
	FieldUserID         = "userID"
	FieldMappedUserName = "mappedUserName"
)

// Resolution is the outcome of resolving one username.
type Resolution struct {
	UserID         user.ID
	MappedUserName string
	Fallback       bool
}

// Resolver resolves usernames against an immutable directory.
// It is safe for concurrent use.
type Resolver struct {
	dir   *user.Directory
	mode  FallbackMode
	index func(string, int) int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallbackMode sets the fallback arithmetic. Default is FallbackExact.
func WithFallbackMode(mode FallbackMode) Option {
	return func(r *Resolver) {
		r.mode = mode
	}
}

// New creates a resolver over dir. It fails if the directory is missing or empty.
func New(dir *user.Directory, opts ...Option) (*Resolver, error) {
	if dir == nil || dir.Len() == 0 {
		return nil, errs.ErrEmptyDirectory
	}

	r := &Resolver{
		dir:  dir,
		mode: FallbackExact,
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := ParseFallbackMode(string(r.mode)); err != nil {
		return nil, err
	}
	r.index = r.mode.indexFunc()

	return r, nil
}

// Directory returns the directory the resolver reads from.
func (r *Resolver) Directory() *user.Directory {
	return r.dir
}

// Mode returns the configured fallback mode.
func (r *Resolver) Mode() FallbackMode {
	return r.mode
}

// Resolve resolves a single username.
func (r *Resolver) Resolve(userName string) Resolution {
	if rec, ok := r.dir.Lookup(userName); ok {
		return Resolution{UserID: rec.ID()}
	}

	rec := r.dir.At(r.index(userName, r.dir.Len()))
	return Resolution{
		UserID:         rec.ID(),
		MappedUserName: rec.Name(),
		Fallback:       true,
	}
}

// Apply resolves req[userName] and writes the result into req: userID always,
// mappedUserName only when a fallback record was chosen. Other keys are left
// untouched. A missing userName resolves as the empty string.
func (r *Resolver) Apply(req map[string]any) Resolution {
	res := r.Resolve(UserNameOf(req))

	req[FieldUserID] = res.UserID.Value()
	if res.Fallback {
		req[FieldMappedUserName] = res.MappedUserName
	}

	return res
}

// UserNameOf returns the username carried by req. Missing or nil values yield
// the empty string; non-string scalars use their string form.
func UserNameOf(req map[string]any) string {
	switch v := req[FieldUserName].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
