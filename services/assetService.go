package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	_ "golang.org/x/image/webp"
)

const (
	MaxImageWidth  = 800
	MaxImageHeight = 600
	JPEGQuality    = 85
	// MaxImagePixels bounds the decoded size of an upload.
	MaxImagePixels = 40_000_000

	defaultPublicPrefix = "/uploads"
	defaultFilePrefix   = "img"
	defaultExtension    = ".jpg"
	defaultMaxBytes     = 5 << 20
)

// ObjectMirror receives a copy of every stored asset. The local upload
// directory stays the source of truth.
type ObjectMirror interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Remove(ctx context.Context, key string) error
}

type AssetConfig struct {
	Dir          string
	PublicPrefix string
	Placeholder  string
	MaxBytes     int64
}

// AssetService normalizes uploaded photos into bounded JPEG files and maps
// stored names back to paths.
type AssetService struct {
	fs     afero.Fs
	cfg    AssetConfig
	mirror ObjectMirror
	logger *zap.Logger
	now    func() time.Time
}

type AssetOption func(*AssetService)

func WithMirror(mirror ObjectMirror) AssetOption {
	return func(s *AssetService) { s.mirror = mirror }
}

func WithClock(now func() time.Time) AssetOption {
	return func(s *AssetService) { s.now = now }
}

func NewAssetService(fs afero.Fs, cfg AssetConfig, logger *zap.Logger, opts ...AssetOption) (*AssetService, error) {
	if cfg.Dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = defaultPublicPrefix
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	s := &AssetService{fs: fs, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save decodes raw image bytes or a base64 / data-URL string, shrinks the
// image to fit 800x600, re-encodes it as JPEG and stores it under filename.
// It returns the public reference path.
func (s *AssetService) Save(ctx context.Context, payload []byte, filename string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}

	raw, err := decodePayload(payload)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", validationError("empty image payload")
	}
	if int64(len(raw)) > s.cfg.MaxBytes {
		return "", validationError("image is %d bytes, limit is %d", len(raw), s.cfg.MaxBytes)
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", processingError("read image header", err)
	}
	if header.Width <= 0 || header.Height <= 0 || int64(header.Width)*int64(header.Height) > MaxImagePixels {
		return "", validationError("image is %dx%d pixels, limit is %d pixels", header.Width, header.Height, MaxImagePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", processingError("decode image", err)
	}
	img = normalizeImage(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return "", processingError("encode image", err)
	}

	if err := s.writeFile(filename, buf.Bytes()); err != nil {
		return "", storageError("write image", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, filename, bytes.NewReader(buf.Bytes()), "image/jpeg"); err != nil {
			s.logger.Warn("asset mirror upload failed", zap.String("filename", filename), zap.Error(err))
		}
	}

	bounds := img.Bounds()
	s.logger.Info("image stored",
		zap.String("filename", filename),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("original_bytes", len(raw)),
		zap.Int("stored_bytes", buf.Len()))

	return path.Join(s.cfg.PublicPrefix, filename), nil
}

// MaxBytes is the largest decoded payload Save accepts.
func (s *AssetService) MaxBytes() int64 {
	return s.cfg.MaxBytes
}

func (s *AssetService) Placeholder() string {
	return s.cfg.Placeholder
}

// Resolve returns the on-disk path of a stored file, or the placeholder path
// when it is missing.
func (s *AssetService) Resolve(filename string) string {
	if checkFilename(filename) != nil {
		return s.cfg.Placeholder
	}
	p := filepath.Join(s.cfg.Dir, filename)
	info, err := s.fs.Stat(p)
	if err != nil || info.IsDir() {
		return s.cfg.Placeholder
	}
	return p
}

// GenerateFilename builds <prefix>_<unix seconds>_<random hex><ext>. The
// random part keeps concurrent uploads apart without locking.
func (s *AssetService) GenerateFilename(originalName, prefix string) string {
	prefix = sanitizeToken(prefix, "-")
	if prefix == "" {
		prefix = defaultFilePrefix
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if clean := sanitizeToken(strings.TrimPrefix(ext, "."), ""); clean != "" {
		ext = "." + clean
	} else {
		ext = defaultExtension
	}

	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s%s", prefix, s.now().Unix(), random, ext)
}

// Delete removes a stored file. A missing file reports false without error.
func (s *AssetService) Delete(filename string) (bool, error) {
	if err := checkFilename(filename); err != nil {
		return false, err
	}

	p := filepath.Join(s.cfg.Dir, filename)
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, storageError("remove image", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Remove(context.Background(), filename); err != nil {
			s.logger.Warn("asset mirror removal failed", zap.String("filename", filename), zap.Error(err))
		}
	}
	s.logger.Info("image removed", zap.String("filename", filename))
	return true, nil
}

// DeleteRef removes the file behind a public reference. References outside
// the public prefix, such as external URLs, report false without touching
// the upload directory.
func (s *AssetService) DeleteRef(ref string) (bool, error) {
	name, ok := strings.CutPrefix(ref, s.cfg.PublicPrefix+"/")
	if !ok || checkFilename(name) != nil {
		return false, nil
	}
	return s.Delete(name)
}

// FilenameFromRef extracts the stored filename from a public reference path.
func FilenameFromRef(ref string) string {
	if ref == "" {
		return ""
	}
	return path.Base(ref)
}

func (s *AssetService) writeFile(filename string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.cfg.Dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, filepath.Join(s.cfg.Dir, filename)); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func checkFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." {
		return validationError("invalid filename %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) || filename != filepath.Base(filename) {
		return validationError("filename %q must not contain a path", filename)
	}
	if strings.HasPrefix(filename, ".") {
		return validationError("filename %q must not be hidden", filename)
	}
	return nil
}

// decodePayload accepts raw image bytes, a bare base64 string, or a
// data:image/...;base64, URL.
func decodePayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		comma := bytes.IndexByte(trimmed, ',')
		if comma < 0 || !bytes.Contains(trimmed[:comma], []byte(";base64")) {
			return nil, processingError("decode data url", errors.New("missing base64 marker"))
		}
		decoded, err := decodeBase64(trimmed[comma+1:])
		if err != nil {
			return nil, processingError("decode data url", err)
		}
		return decoded, nil
	}

	if decoded, err := decodeBase64(trimmed); err == nil && len(decoded) > 0 {
		return decoded, nil
	}
	return payload, nil
}

func decodeBase64(data []byte) ([]byte, error) {
	s := string(data)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func normalizeImage(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() > MaxImageWidth || b.Dy() > MaxImageHeight {
		img = imaging.Fit(img, MaxImageWidth, MaxImageHeight, imaging.Lanczos)
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b = img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func sanitizeToken(s, replacement string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteString(replacement)
		}
	}
	return b.String()
}
