package zarr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultToken is the service account credential file mounted on the
// workflow nodes
const DefaultToken = "/opt/gcsfuse_tokens/impactlab-data.json"

// Options configures a GCS store
type Options struct {
	// Token is a credential file path. Empty means DefaultToken.
	Token string
	// Check makes OpenGCS confirm that the store root holds zarr metadata
	Check bool
}

// GCSStore is a zarr hierarchy under a Cloud Storage prefix
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// splitURL accepts gs://bucket/prefix or bucket/prefix
func splitURL(url string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(url, "gs://")
	trimmed = strings.Trim(trimmed, "/")
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket in store url %q", url)
	}
	return bucket, prefix, nil
}

// OpenGCS connects to the store at url using the credential file in opts
func OpenGCS(ctx context.Context, url string, opts Options) (*GCSStore, error) {
	bucket, prefix, err := splitURL(url)
	if err != nil {
		return nil, err
	}
	token := opts.Token
	if token == "" {
		token = DefaultToken
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsFile(token))
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	s := &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
	}

	if opts.Check {
		if err := checkRoot(ctx, s); err != nil {
			client.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *GCSStore) object(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(s.object(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %s: %w", s, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	q := &storage.Query{Delimiter: "/"}
	if s.prefix != "" {
		q.Prefix = s.prefix + "/"
	}

	var names []string
	it := s.bucket.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", s, err)
		}
		// only synthetic directory entries carry Prefix
		if attrs.Prefix == "" {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, q.Prefix), "/")
		if name != "" && !strings.HasPrefix(name, ".") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *GCSStore) String() string {
	return "gs://" + s.name + "/" + s.prefix
}

// Close releases the storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// checkRoot fails unless the store root holds group or consolidated metadata
func checkRoot(ctx context.Context, s Store) error {
	for _, key := range []string{consolidatedKey, groupKey} {
		_, err := s.Get(ctx, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return fmt.Errorf("%s is not a zarr group: %w", s, ErrNotFound)
}
