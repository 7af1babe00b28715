package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"
)

// Fake is an in-memory Driver test double, a structural adaptation of the
// teacher's oci.FakeRegistry to the repo-driver method set: branches and
// tags are named refs, each with its own file tree keyed by commit sha.
type Fake struct {
	Branches []Ref
	Tags     []Ref

	// Files maps a commit sha to its file tree (path -> content).
	Files map[string]map[string][]byte
}

// NewFake returns an empty Fake ready for AddBranch/AddTag/AddFile calls.
func NewFake() *Fake {
	return &Fake{Files: make(map[string]map[string][]byte)}
}

// AddBranch registers a branch ref whose sha is derived from name.
func (f *Fake) AddBranch(name string, date time.Time) Ref {
	r := Ref{Name: name, SHA: fakeSHA("branch:" + name), Date: date}
	f.Branches = append(f.Branches, r)
	return r
}

// AddTag registers a tag ref.
func (f *Fake) AddTag(name string, date time.Time) Ref {
	r := Ref{Name: name, SHA: fakeSHA("tag:" + name), Date: date}
	f.Tags = append(f.Tags, r)
	return r
}

// AddFile stores content at path for the commit sha.
func (f *Fake) AddFile(sha, path string, content []byte) {
	tree, ok := f.Files[sha]
	if !ok {
		tree = make(map[string][]byte)
		f.Files[sha] = tree
	}
	tree[path] = content
}

func fakeSHA(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("%x", h)[:40]
}

func (f *Fake) GetBranches(ctx context.Context) ([]Ref, error) {
	return f.Branches, nil
}

func (f *Fake) GetTags(ctx context.Context) ([]Ref, error) {
	return f.Tags, nil
}

func (f *Fake) ReadFile(ctx context.Context, sha, path string, sink func(io.Reader) error) error {
	tree, ok := f.Files[sha]
	if !ok {
		return fmt.Errorf("repo: commit %s: %w", sha, ErrNotFound)
	}
	content, ok := tree[path]
	if !ok {
		return fmt.Errorf("repo: %s@%s: %w", path, sha, ErrNotFound)
	}
	return sink(bytes.NewReader(content))
}

func (f *Fake) Download(ctx context.Context, version string, sink func(io.Reader) error) error {
	return sink(bytes.NewReader([]byte("fake-archive:" + version)))
}

func (f *Fake) GetDownloadURL(ctx context.Context, version string) (string, error) {
	return "fake://download/" + version, nil
}
