package repo

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/pkgforge/registry/pkg/cred"
)

// Annotation keys used by OCIDriver to recover a commit's authorship
// timestamp from the manifest it's resolved from, and to recover a
// layer's repository-relative path.
const (
	CommitDateAnnotation = "dev.pkgforge.commit.date"
	FilePathAnnotation   = "dev.pkgforge.file.path"

	branchTagPrefix = "refs/heads/"
	tagTagPrefix    = "refs/tags/"
)

// ociDescriptor is the opaque repository descriptor understood by
// OCIDriver: {"kind":"oci","ref":"registry.example.com/org/pkg"}.
type ociDescriptor struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

type ociTarget interface {
	oras.ReadOnlyTarget
	registry.TagLister
}

// OCIDriver resolves a repository descriptor against content stored as OCI
// artifacts: branches and tags are OCI tags partitioned by the
// refs/heads/NAME and refs/tags/NAME naming convention; a version's
// "commit" is the digest of the manifest its ref points at; files are
// blobs addressed by a path annotation. Adapted from the teacher's
// pkg/oci.Registry, trimmed to the read-only operations the
// repository-driver contract (spec §6) requires.
type OCIDriver struct {
	ref string

	// newTarget is swappable in tests to avoid a live network dial.
	newTarget func(ctx context.Context) (ociTarget, error)
}

// OCIOpener resolves ociDescriptor-shaped repository descriptors to
// OCIDrivers. It implements the Opener contract.
type OCIOpener struct{}

func (OCIOpener) Open(ctx context.Context, descriptor []byte) (Driver, error) {
	var d ociDescriptor
	if err := json.Unmarshal(descriptor, &d); err != nil {
		return nil, fmt.Errorf("repo: parse descriptor: %w", err)
	}
	if d.Kind != "oci" || d.Ref == "" {
		return nil, fmt.Errorf("repo: descriptor missing oci ref")
	}
	return NewOCIDriver(d.Ref), nil
}

// NewOCIDriver returns a driver bound to the given OCI repository
// reference (host/path, no tag).
func NewOCIDriver(ref string) *OCIDriver {
	d := &OCIDriver{ref: ref}
	d.newTarget = d.dial
	return d
}

func (d *OCIDriver) dial(ctx context.Context) (ociTarget, error) {
	r, err := remote.NewRepository(d.ref)
	if err != nil {
		return nil, fmt.Errorf("repo: dial %q: %w", d.ref, err)
	}
	if c, ok := cred.FromContext(ctx); ok && c.Basic != nil {
		r.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(r.Reference.Registry, auth.Credential{
				Username: c.Basic.User,
				Password: c.Basic.Password,
			}),
		}
	}
	return r, nil
}

func (d *OCIDriver) refsByPrefix(ctx context.Context, prefix string) ([]Ref, error) {
	target, err := d.newTarget(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := registry.Tags(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("repo: list tags: %w", err)
	}

	var refs []Ref
	for _, t := range tags {
		if !strings.HasPrefix(t, prefix) {
			continue
		}
		desc, err := target.Resolve(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("repo: resolve tag %q: %w", t, err)
		}
		manifest, err := fetchManifest(ctx, target, desc)
		if err != nil {
			return nil, err
		}
		refs = append(refs, Ref{
			Name: strings.TrimPrefix(t, prefix),
			SHA:  string(desc.Digest),
			Date: manifestDate(manifest),
		})
	}
	return refs, nil
}

func (d *OCIDriver) GetBranches(ctx context.Context) ([]Ref, error) {
	return d.refsByPrefix(ctx, branchTagPrefix)
}

func (d *OCIDriver) GetTags(ctx context.Context) ([]Ref, error) {
	return d.refsByPrefix(ctx, tagTagPrefix)
}

// ReadFile resolves the manifest whose digest is sha (the "commit" stand-in
// for OCI-backed repositories) and streams the blob whose FilePathAnnotation
// equals path.
func (d *OCIDriver) ReadFile(ctx context.Context, sha, path string, sink func(io.Reader) error) error {
	target, err := d.newTarget(ctx)
	if err != nil {
		return err
	}

	desc, err := target.Resolve(ctx, sha)
	if err != nil {
		return fmt.Errorf("repo: resolve commit %s: %w", sha, ErrNotFound)
	}
	manifest, err := fetchManifest(ctx, target, desc)
	if err != nil {
		return err
	}

	for _, l := range manifest.Layers {
		if l.Annotations[FilePathAnnotation] != path {
			continue
		}
		rc, err := target.Fetch(ctx, l)
		if err != nil {
			return fmt.Errorf("repo: fetch %s@%s: %w", path, sha, err)
		}
		defer rc.Close()
		return sink(rc)
	}
	return fmt.Errorf("repo: %s@%s: %w", path, sha, ErrNotFound)
}

func versionToOCITag(version string) string {
	if strings.HasPrefix(version, "~") {
		return branchTagPrefix + version[1:]
	}
	return tagTagPrefix + version
}

// Download packs every file layer of version's manifest into a gzipped tar
// stream and passes it to sink, giving callers an archive shaped the way a
// forge's own tag/branch tarball download would be.
func (d *OCIDriver) Download(ctx context.Context, version string, sink func(io.Reader) error) error {
	target, err := d.newTarget(ctx)
	if err != nil {
		return err
	}

	tag := versionToOCITag(version)
	desc, err := target.Resolve(ctx, tag)
	if err != nil {
		return fmt.Errorf("repo: resolve %s: %w", version, ErrNotFound)
	}
	manifest, err := fetchManifest(ctx, target, desc)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(packTar(ctx, target, manifest, pw))
	}()
	defer pr.Close()

	return sink(pr)
}

func packTar(ctx context.Context, target ociTarget, manifest ocispec.Manifest, w io.Writer) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, l := range manifest.Layers {
		path := l.Annotations[FilePathAnnotation]
		if path == "" {
			continue
		}
		rc, err := target.Fetch(ctx, l)
		if err != nil {
			return fmt.Errorf("repo: fetch %s: %w", path, err)
		}
		if err := tw.WriteHeader(&tar.Header{Name: path, Size: l.Size, Mode: 0o644}); err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(tw, rc); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}
	return nil
}

func (d *OCIDriver) GetDownloadURL(ctx context.Context, version string) (string, error) {
	return fmt.Sprintf("oci://%s@%s", d.ref, versionToOCITag(version)), nil
}

func fetchManifest(ctx context.Context, target ociTarget, desc ocispec.Descriptor) (ocispec.Manifest, error) {
	rc, err := target.Fetch(ctx, desc)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("repo: fetch manifest: %w", err)
	}
	defer rc.Close()

	raw, err := content.ReadAll(rc, desc)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("repo: read manifest: %w", err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("repo: unmarshal manifest: %w", err)
	}
	return manifest, nil
}

func manifestDate(manifest ocispec.Manifest) time.Time {
	if v, ok := manifest.Annotations[CommitDateAnnotation]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
