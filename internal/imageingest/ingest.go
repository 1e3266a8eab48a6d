// Package imageingest turns inline data-URL images into stored blob paths.
package imageingest

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/clock"
	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Folders images are written to.
const (
	FolderGaransiPhotos         = "garansi-photos"
	FolderGaransiDeliveryPhotos = "garansi-delivery-photos"
	FolderOrderPhotos           = "order-photos"
	FolderOrderDeliveryPhotos   = "order-delivery-photos"
)

const (
	dropReasonDecode = "decode"
	dropReasonEmpty  = "empty"
	dropReasonWrite  = "write"
)

var dataURLPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,`)

type Params struct {
	fx.In

	Store   blobstore.Store
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Ingester struct {
	store   blobstore.Store
	clock   clock.Clock
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	newID   func() string
}

func New(p Params) *Ingester {
	return &Ingester{
		store:   p.Store,
		clock:   p.Clock,
		log:     p.Log.Named("imageingest"),
		metrics: p.Metrics,
		newID:   func() string { return ulid.Make().String() },
	}
}

// IsDataURL reports whether s is an inline base64 image.
func IsDataURL(s string) bool {
	return dataURLPattern.MatchString(strings.TrimSpace(s))
}

// ParseDataURL splits a data URL into its normalized extension and base64
// payload. jpeg is reported as jpg.
func ParseDataURL(s string) (ext string, payload string, ok bool) {
	s = strings.TrimSpace(s)
	m := dataURLPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	ext = strings.ToLower(m[1])
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext, s[len(m[0]):], true
}

// Ingest stores every data-URL entry of raw under folder and returns the
// union of existing and the resulting paths, existing first, without
// duplicates. Entries that cannot be decoded or written are dropped. Plain
// strings are kept as already-stored paths.
func (i *Ingester) Ingest(ctx context.Context, raw []string, existing []string, folder string) []string {
	stored := make([]string, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ext, payload, ok := ParseDataURL(entry)
		if !ok {
			stored = append(stored, entry)
			continue
		}

		data, err := base64.StdEncoding.Strict().DecodeString(payload)
		if err != nil {
			i.drop(ctx, folder, dropReasonDecode, zap.Error(err))
			continue
		}
		if len(data) == 0 {
			i.drop(ctx, folder, dropReasonEmpty)
			continue
		}

		key := i.objectKey(folder, ext)
		if err := i.store.Put(ctx, key, data); err != nil {
			i.log.Warn("failed to store image", zap.String("folder", folder), zap.Error(err))
			i.metrics.RecordImageDropped(ctx, folder, dropReasonWrite)
			continue
		}
		i.metrics.RecordImageStored(ctx, folder)
		stored = append(stored, key)
	}
	return Union(existing, stored)
}

func (i *Ingester) objectKey(folder, ext string) string {
	return folder + "/" + i.clock.Now().Format("20060102_150405") + "_" + i.newID() + "." + ext
}

func (i *Ingester) drop(ctx context.Context, folder, reason string, fields ...zap.Field) {
	i.log.Debug("dropping inline image", append([]zap.Field{zap.String("folder", folder), zap.String("reason", reason)}, fields...)...)
	i.metrics.RecordImageDropped(ctx, folder, reason)
}

// Union concatenates lists keeping the first occurrence of each non-empty
// value.
func Union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
