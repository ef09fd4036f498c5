package tenantcontext

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
)

const (
	CookieOrgID   = "active_org_id"
	CookieOrgName = "active_org_name"

	fingerprintLength = 16
)

// Entry is a cached tenant hint.
type Entry struct {
	OrgID   snowflake.ID
	OrgName string
}

// Cache holds the last resolved tenant for one auth session. Get must not
// return an entry that was written under a different session.
type Cache interface {
	Get(principal authdomain.Principal) (Entry, bool)
	Set(principal authdomain.Principal, entry Entry)
	Clear()
}

// CookieOptions controls the cookies written by CookieCache.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// CookieCache keeps the tenant hint in two client cookies. The org id cookie
// carries a fingerprint of the auth session it was written under.
type CookieCache struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	pending *Entry
	cleared bool
}

func NewCookieCache(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieCache {
	return &CookieCache{w: w, r: r, opts: opts}
}

func (c *CookieCache) Get(principal authdomain.Principal) (Entry, bool) {
	if c.pending != nil {
		return *c.pending, true
	}
	if c.cleared || c.r == nil {
		return Entry{}, false
	}

	cookie, err := c.r.Cookie(CookieOrgID)
	if err != nil {
		return Entry{}, false
	}
	rawID, fp, ok := strings.Cut(cookie.Value, ".")
	if !ok || fp != Fingerprint(principal) {
		return Entry{}, false
	}
	orgID, err := snowflake.ParseString(rawID)
	if err != nil || orgID <= 0 {
		return Entry{}, false
	}

	entry := Entry{OrgID: orgID}
	if nameCookie, err := c.r.Cookie(CookieOrgName); err == nil {
		if name, err := url.QueryUnescape(nameCookie.Value); err == nil {
			entry.OrgName = name
		}
	}
	return entry, true
}

func (c *CookieCache) Set(principal authdomain.Principal, entry Entry) {
	c.pending = &entry
	c.cleared = false
	if c.w == nil {
		return
	}

	maxAge := int(c.opts.MaxAge / time.Second)
	http.SetCookie(c.w, c.cookie(CookieOrgID, entry.OrgID.String()+"."+Fingerprint(principal), maxAge))
	http.SetCookie(c.w, c.cookie(CookieOrgName, url.QueryEscape(entry.OrgName), maxAge))
}

func (c *CookieCache) Clear() {
	c.pending = nil
	c.cleared = true
	if c.w == nil {
		return
	}
	http.SetCookie(c.w, c.cookie(CookieOrgID, "", -1))
	http.SetCookie(c.w, c.cookie(CookieOrgName, "", -1))
}

func (c *CookieCache) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Fingerprint binds a cached value to the principal's auth session.
func Fingerprint(principal authdomain.Principal) string {
	sum := sha256.Sum256([]byte(principal.SessionKey()))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// MemoryCache is a Cache for callers without a cookie jar.
type MemoryCache struct {
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]Entry{}}
}

func (m *MemoryCache) Get(principal authdomain.Principal) (Entry, bool) {
	entry, ok := m.entries[principal.SessionKey()]
	return entry, ok
}

func (m *MemoryCache) Set(principal authdomain.Principal, entry Entry) {
	m.entries[principal.SessionKey()] = entry
}

func (m *MemoryCache) Clear() {
	m.entries = map[string]Entry{}
}
