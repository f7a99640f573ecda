// Package config loads and validates the on-disk server and user
// configuration described in the external interfaces (server.json,
// user.json, key.json).
package config

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Layout is the only on-disk schema version this implementation speaks.
// A server.json with any other value is refused rather than migrated
// (see SPEC_FULL.md §D.4).
const Layout = "2.7"

// Server holds the instance-wide configuration read once at startup from
// {basedir}/server.json and treated as read-only afterwards.
type Server struct {
	BaseDir            string `json:"-"`
	Host               string `json:"host"`
	Prefix             string `json:"prefix"`
	Address            string `json:"address"`
	Port               int    `json:"port"`
	Layout             string `json:"layout"`
	DbgLevel           int    `json:"dbglevel"`
	QueueRetryMinutes  int    `json:"queue_retry_minutes"`
	QueueRetryMax      int    `json:"queue_retry_max"`
	MaxTimelineEntries int    `json:"max_timeline_entries"`
	TimelinePurgeDays  int    `json:"timeline_purge_days"`
	LocalPurgeDays     int    `json:"local_purge_days"`
}

// defaults matches the reference instance's out-of-the-box tuning; these
// are applied before validation so a hand-edited server.json only needs to
// specify the handful of fields that differ from them.
func defaults() Server {
	return Server{
		Address:            "0.0.0.0",
		Port:               8001,
		Layout:             Layout,
		DbgLevel:           1,
		QueueRetryMinutes:  2,
		QueueRetryMax:      10,
		MaxTimelineEntries: 256,
		TimelinePurgeDays:  90,
		LocalPurgeDays:     0,
	}
}

// BaseURL builds an absolute URL under this server's prefix+host.
func (s *Server) BaseURL(path string) string {
	base := "https://" + strings.TrimRight(s.Host, "/") + s.Prefix
	return strings.TrimRight(base, "/") + path
}

// ActorURL returns the canonical actor id for a local uid.
func (s *Server) ActorURL(uid string) string {
	return s.BaseURL("/" + uid)
}

// ListenAddr is the address:port pair http.Server should bind to.
func (s *Server) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// LoadServer reads and validates {basedir}/server.json.
func LoadServer(basedir string) (*Server, error) {
	path := filepath.Join(basedir, "server.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	s := defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.BaseDir = basedir

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func (s *Server) validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.Layout != Layout {
		return fmt.Errorf("layout %q is not supported (this build only speaks %q); migration is not implemented", s.Layout, Layout)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.QueueRetryMinutes <= 0 {
		return fmt.Errorf("queue_retry_minutes must be positive")
	}
	if s.QueueRetryMax < 0 {
		return fmt.Errorf("queue_retry_max must not be negative")
	}
	return nil
}

// Save writes the server config back to {basedir}/server.json, pretty
// printed, the way the rest of the on-disk format is pretty printed.
func (s *Server) Save() error {
	return writeJSON(filepath.Join(s.BaseDir, "server.json"), s)
}

// User holds per-user profile configuration, read from
// {basedir}/user/{uid}/user.json.
type User struct {
	dir string `json:"-"`

	UID       string `json:"uid"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Published string `json:"published"`
	// Passwd stores "nonce:sha1hex(nonce:uid:pwd)" — the exact legacy
	// format this on-disk layout commits to; see DESIGN.md for why this
	// is intentionally not bcrypt/argon2.
	Passwd string `json:"passwd,omitempty"`
	Email  string `json:"email,omitempty"`
}

// UID validation: alphanumeric and underscore only, matching the external
// interface's constraint on user directory names.
func ValidUID(uid string) bool {
	if uid == "" {
		return false
	}
	for _, r := range uid {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// UserDir returns {basedir}/user/{uid}.
func UserDir(basedir, uid string) string {
	return filepath.Join(basedir, "user", uid)
}

// LoadUser reads {basedir}/user/{uid}/user.json.
func LoadUser(basedir, uid string) (*User, error) {
	if !ValidUID(uid) {
		return nil, fmt.Errorf("invalid uid %q", uid)
	}
	dir := UserDir(basedir, uid)
	path := filepath.Join(dir, "user.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	u.dir = dir
	return &u, nil
}

// Save writes the user config back to its user.json.
func (u *User) Save() error {
	return writeJSON(filepath.Join(u.dir, "user.json"), u)
}

// Key holds the per-user RSA keypair, stored as PEM strings inside a single
// key.json (unlike the teacher's two-file layout; this follows the external
// interface's {"secret":..., "public":...} shape).
type Key struct {
	path      string `json:"-"`
	SecretPEM string `json:"secret"`
	PublicPEM string `json:"public"`
	private   *rsa.PrivateKey
	public    *rsa.PublicKey
}

func keyPath(basedir, uid string) string {
	return filepath.Join(UserDir(basedir, uid), "key.json")
}

// LoadKey reads and parses {basedir}/user/{uid}/key.json.
func LoadKey(basedir, uid string) (*Key, error) {
	path := keyPath(basedir, uid)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var k Key
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	k.path = path
	if err := k.parse(); err != nil {
		return nil, fmt.Errorf("parse keys in %s: %w", path, err)
	}
	return &k, nil
}

func (k *Key) parse() error {
	block, _ := pem.Decode([]byte(k.SecretPEM))
	if block == nil {
		return fmt.Errorf("invalid private key PEM")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	k.private = priv
	k.public = &priv.PublicKey
	return nil
}

// Private returns the parsed RSA private key.
func (k *Key) Private() *rsa.PrivateKey { return k.private }

// Public returns the parsed RSA public key.
func (k *Key) Public() *rsa.PublicKey { return k.public }

// GenerateKey creates a new 2048-bit RSA keypair and writes it to
// {basedir}/user/{uid}/key.json. Mirrors the teacher's "generate on
// missing" pattern (internal/ap/keys.go), but targets one JSON file
// instead of two PEM files.
func GenerateKey(basedir, uid string) (*Key, error) {
	priv, pub, secretPEM, publicPEM, err := generateRSAPEM()
	if err != nil {
		return nil, err
	}
	k := &Key{
		path:      keyPath(basedir, uid),
		SecretPEM: secretPEM,
		PublicPEM: publicPEM,
		private:   priv,
		public:    pub,
	}
	if err := writeJSON(k.path, k); err != nil {
		return nil, err
	}
	return k, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0600)
}

// HashPassword hashes passwd the way the on-disk "passwd" field has always
// stored it: "{nonce}:{sha1hex(nonce:uid:passwd)}". A random nonce is
// generated when nonce is empty (new password); callers checking an
// existing password pass the stored nonce back in. This is intentionally
// not bcrypt/argon2 — see DESIGN.md for why the legacy format is kept.
func HashPassword(uid, passwd, nonce string) string {
	if nonce == "" {
		nonce = fmt.Sprintf("%08x", rand.Uint32())
	}
	sum := sha1.Sum([]byte(nonce + ":" + uid + ":" + passwd))
	return nonce + ":" + hex.EncodeToString(sum[:])
}

// CheckPassword reports whether passwd matches the stored "nonce:hash"
// value hash for uid.
func CheckPassword(uid, passwd, hash string) bool {
	parts := strings.SplitN(hash, ":", 2)
	if len(parts) != 2 {
		return false
	}
	return HashPassword(uid, passwd, parts[0]) == hash
}

// ListUsers returns every uid with a user directory under {basedir}/user,
// in no particular order. Used by the queue worker and purge loops, which
// must visit every local account on each pass.
func ListUsers(basedir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(basedir, "user"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list users: %w", err)
	}
	var uids []string
	for _, e := range entries {
		if e.IsDir() && ValidUID(e.Name()) {
			uids = append(uids, e.Name())
		}
	}
	return uids, nil
}

// ParseActorURL splits an https://host/prefix/uid style URL's host out,
// failing when the URL has no host.
func ParseActorURL(actorURL string) (host string, err error) {
	u, err := url.Parse(actorURL)
	if err != nil {
		return "", fmt.Errorf("parse actor URL %q: %w", actorURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("actor URL %q has no host", actorURL)
	}
	return u.Host, nil
}
