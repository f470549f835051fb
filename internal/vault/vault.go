// internal/vault/vault.go
//
// Vault client wrapper.
//
// Context
// -------
//   Config values may hold `vault:<path>#<key>` references (the session
//   secret, the local-store DSN).  Client resolves them against a KV-v2
//   mount.  Reads go through a small bounded cache with a per-entry expiry,
//   and concurrent misses for the same reference share one Vault round trip.
//   The token is renewed in the background until ctx ends.
//
// Boot order
// ----------
//  1. cli, err := vault.New(ctx, zap.S())
//  2. cfg, err := config.Load(ctx, cli)
//
// Build tags: none.
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/studyhub/internal/cache"
)

// RefTTL is how long Resolve caches a secret.
const RefTTL = 5 * time.Minute

// cacheSize bounds distinct references kept in memory.
const cacheSize = 64

//
// SECTION 1.  Client
//

// Client is safe for concurrent use.  Build it with New.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger
	now func() time.Time

	mu      sync.Mutex
	secrets *cache.LRU // ref → entry
	group   singleflight.Group
}

type entry struct {
	val     string
	expires time.Time
}

// Enabled reports whether VAULT_ADDR is set.
func Enabled() bool { return os.Getenv("VAULT_ADDR") != "" }

// New reads VAULT_ADDR and VAULT_TOKEN (or ~/.vault-token) and starts token
// renewal.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault: read environment: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault: new client: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		api.SetToken(tok)
	}

	c := wrap(api, log)
	go c.renewLoop(ctx)
	return c, nil
}

func wrap(api *vault.Client, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{api: api, log: log, now: time.Now, secrets: cache.New(cacheSize)}
}

// ParseRef splits "vault:<path>#<key>".
func ParseRef(ref string) (path, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "vault:")
	if !ok {
		return "", "", fmt.Errorf("vault ref %q lacks the vault: prefix", ref)
	}
	path, key, ok = strings.Cut(rest, "#")
	if !ok || path == "" || key == "" {
		return "", "", fmt.Errorf("vault ref %q must look like vault:<path>#<key>", ref)
	}
	return path, key, nil
}

// Resolve implements config.SecretSource.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	path, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, path, key, RefTTL)
}

// GetKV returns one string field of a KV-v2 secret.  A positive ttl caches
// the value for that long.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", fmt.Errorf("vault: empty path or key")
	}
	ref := secretPath + "#" + key
	if v, ok := c.cached(ref); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(ref, func() (any, error) {
		val, err := c.read(ctx, secretPath, key)
		if err == nil && ttl > 0 {
			c.mu.Lock()
			c.secrets.Add(ref, entry{val: val, expires: c.now().Add(ttl)})
			c.mu.Unlock()
		}
		return val, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cached(ref string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.secrets.Get(ref)
	if !ok {
		return "", false
	}
	e := v.(entry)
	if !c.now().Before(e.expires) {
		c.secrets.Remove(ref)
		return "", false
	}
	return e.val, true
}

func (c *Client) read(ctx context.Context, secretPath, key string) (string, error) {
	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault: get %s: %w", secretPath, err)
	}
	switch v := sec.Data[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("vault: %s has no key %q", secretPath, key)
	default:
		return "", fmt.Errorf("vault: %s#%s holds %T, want string", secretPath, key, v)
	}
}

//
// SECTION 2.  Token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		switch {
		case err != nil:
			c.log.Warnw("vault token renew failed", "err", err)
			sleep(ctx, 30*time.Second)
		case sec == nil || sec.Auth == nil || !sec.Auth.Renewable:
			c.log.Infow("vault token not renewable")
			sleep(ctx, time.Hour)
		default:
			c.watch(ctx, sec)
			sleep(ctx, 15*time.Second)
		}
	}
}

// watch runs a lifetime watcher until it stops or ctx ends.
func (c *Client) watch(ctx context.Context, sec *vault.Secret) {
	w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
	if err != nil {
		c.log.Warnw("vault watcher init failed", "err", err)
		return
	}
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
