// Package activitypub wires MessageBuilder, InboundFSM, and
// DeliveryFanout together (spec.md §4.8, §4.9, §4.11), replacing the
// source's global mutable state (srv_basedir, srv_config, …) with the
// explicit context struct the design notes call for (SPEC_FULL.md §9 /
// spec.md §9).
package activitypub

import (
	"path/filepath"

	"github.com/klppl/fedif/internal/actors"
	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/flatstore"
	"github.com/klppl/fedif/internal/mailer"
	"github.com/klppl/fedif/internal/queue"
)

// Instance holds everything shared across every user on one server
// process: the validated server config, the single shared ObjectStore,
// the actor resolver, and the mailer sink. Constructed once at startup.
type Instance struct {
	Server   *config.Server
	Objects  *flatstore.ObjectStore
	Resolver *actors.Resolver
	Mailer   mailer.Mailer
}

// NewInstance builds an Instance from a loaded server config.
func NewInstance(srv *config.Server, m mailer.Mailer) *Instance {
	objects := flatstore.NewObjectStore(srv.BaseDir)
	return &Instance{
		Server:   srv,
		Objects:  objects,
		Resolver: actors.New(objects),
		Mailer:   m,
	}
}

// User binds an Instance to one local account, exposing the per-user
// collections and cache projections every component needs.
type User struct {
	*Instance
	UID   string
	Cfg   *config.User
	Key   *config.Key
	Dir   string
	Cache *flatstore.UserCache
	Queue *queue.Queue

	Followers *flatstore.Collection
	Following *flatstore.Collection
	Muted     *flatstore.Collection
	Hidden    *flatstore.Collection
}

// OpenUser loads a user's config and key and returns a bound User.
func (inst *Instance) OpenUser(uid string) (*User, error) {
	cfg, err := config.LoadUser(inst.Server.BaseDir, uid)
	if err != nil {
		return nil, err
	}
	key, err := config.LoadKey(inst.Server.BaseDir, uid)
	if err != nil {
		return nil, err
	}
	return inst.bindUser(uid, cfg, key), nil
}

func (inst *Instance) bindUser(uid string, cfg *config.User, key *config.Key) *User {
	dir := config.UserDir(inst.Server.BaseDir, uid)
	return &User{
		Instance:  inst,
		UID:       uid,
		Cfg:       cfg,
		Key:       key,
		Dir:       dir,
		Cache:     flatstore.NewUserCache(inst.Objects, dir),
		Queue:     queue.New(dir, inst.Server.QueueRetryMinutes),
		Followers: flatstore.NewCollection(filepath.Join(dir, "followers.list")),
		Following: flatstore.NewCollection(filepath.Join(dir, "following.list")),
		Muted:     flatstore.NewCollection(filepath.Join(dir, "muted.list")),
		Hidden:    flatstore.NewCollection(filepath.Join(dir, "hidden.list")),
	}
}

// ActorURL is this user's canonical actor id.
func (u *User) ActorURL() string { return u.Server.ActorURL(u.UID) }

// KeyID is the "{actor}#main-key" identifier this user signs with.
func (u *User) KeyID() string { return u.ActorURL() + "#main-key" }
