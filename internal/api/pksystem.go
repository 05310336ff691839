package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	pkBaseURL      = "https://api.pluralkit.me/v2"
	pkTokenLength  = 64
	pkQueryTimeout = 20 * time.Second
)

// PkSystem is an optional secondary identity a user may proxy chat
// messages through.
type PkSystem struct {
	ID       string
	Name     string
	Fronters []PkMember
}

// PkMember is one member of a system, with the proxy tags that claim
// messages for it.
type PkMember struct {
	ID          string
	DisplayName string

	proxyTags []*regexp.Regexp
}

// Proxy returns the fronter whose proxy tags match the message, falling
// back to the first fronter. Nil when nobody fronts.
func (s *PkSystem) Proxy(message string) *PkMember {
	for i := range s.Fronters {
		for _, tag := range s.Fronters[i].proxyTags {
			if tag.MatchString(message) {
				return &s.Fronters[i]
			}
		}
	}
	if len(s.Fronters) > 0 {
		return &s.Fronters[0]
	}
	return nil
}

// SystemFromToken resolves a PluralKit token into the system it belongs
// to. Tokens of the wrong length resolve to nil without a network call.
func SystemFromToken(ctx context.Context, token string) (*PkSystem, error) {
	if len(token) != pkTokenLength {
		return nil, nil
	}

	pk.setToken(token)

	me, err := pk.get(ctx, "systems/@me")
	if err != nil {
		return nil, err
	}
	id, _ := me["id"].(string)
	if id == "" {
		return nil, nil
	}
	name, _ := me["name"].(string)

	fronters, err := pk.get(ctx, "systems/"+id+"/fronters")
	if err != nil {
		return nil, err
	}

	system := &PkSystem{ID: id, Name: name}
	if members, ok := fronters["members"].([]interface{}); ok {
		for _, m := range members {
			obj, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			system.Fronters = append(system.Fronters, pkMemberFromObject(obj))
		}
	}

	log.Debug().Str("system", system.Name).Msg("resolved system identity")
	return system, nil
}

func pkMemberFromObject(obj map[string]interface{}) PkMember {
	member := PkMember{}
	member.ID, _ = obj["id"].(string)
	member.DisplayName, _ = obj["name"].(string)

	if tags, ok := obj["proxy_tags"].([]interface{}); ok {
		for _, t := range tags {
			tag, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			prefix, _ := tag["prefix"].(string)
			suffix, _ := tag["suffix"].(string)
			member.proxyTags = append(member.proxyTags,
				regexp.MustCompile("(?s)^"+regexp.QuoteMeta(prefix)+".*"+regexp.QuoteMeta(suffix)+"$"))
		}
	}
	return member
}

// pkClient queries the PluralKit HTTP API, honoring its rate limit
// headers across calls.
type pkClient struct {
	mu     sync.Mutex
	client *http.Client
	token  string

	remaining int
	resetIn   time.Duration
}

var pk = &pkClient{
	client:    &http.Client{Timeout: pkQueryTimeout},
	remaining: 1,
}

func (c *pkClient) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// get fetches one route. Calls are serialized so the rate limit
// bookkeeping stays consistent.
func (c *pkClient) get(ctx context.Context, route string) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining == 0 && c.resetIn > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.resetIn):
		}
		c.remaining = 1
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pkBaseURL+"/"+route, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pluralkit query failed: %w", err)
	}
	defer resp.Body.Close()

	if remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
		c.remaining = remaining
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		c.resetIn = time.Until(time.UnixMilli(reset))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{})
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unexpected pluralkit response: %w", err)
	}
	return result, nil
}
