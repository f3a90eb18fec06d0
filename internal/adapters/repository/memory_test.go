package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
)

func run(player string, d model.Difficulty, level, elapsed, errs int) model.RunRecord {
	return model.RunRecord{PlayerID: player, Difficulty: d, Level: level, ElapsedSeconds: elapsed, ErrorCount: errs}
}

func TestMemoryStore_Append(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		store := NewMemoryStore(WithClock(func() time.Time { return fixed }))

		Convey("When appending a valid record", func() {
			rec, err := store.Append(ctx, run("p1", model.Easy, 1, 40, 2))

			Convey("Then an id and timestamp are assigned", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldNotBeEmpty)
				So(rec.CreatedAt, ShouldEqual, fixed)
				So(store.Runs(), ShouldHaveLength, 1)
			})
		})

		Convey("When appending a structurally invalid record", func() {
			_, err := store.Append(ctx, run("p1", model.Difficulty("expert"), 1, 40, 2))

			Convey("Then it is rejected as a validation error and nothing is stored", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(store.Runs(), ShouldBeEmpty)
			})
		})

		Convey("When appending a zero-time run", func() {
			_, err := store.Append(ctx, run("p1", model.Easy, 1, 0, 0))

			Convey("Then it is stored but never reduced", func() {
				So(err, ShouldBeNil)
				So(store.Runs(), ShouldHaveLength, 1)
				best, err := store.BestPerPlayer(ctx, model.Easy, 1)
				So(err, ShouldBeNil)
				So(best, ShouldBeEmpty)
			})
		})
	})
}

func TestMemoryStore_Reduce(t *testing.T) {
	Convey("Given runs across players, levels and difficulties", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		for _, r := range []model.RunRecord{
			run("p1", model.Easy, 1, 50, 1),
			run("p1", model.Easy, 1, 30, 5),
			run("p1", model.Easy, 2, 20, 0),
			run("p2", model.Easy, 1, 45, 0),
			run("p2", model.Easy, 1, 0, 0),
			run("p3", model.Hard, 1, 10, 0),
		} {
			_, err := store.Append(ctx, r)
			So(err, ShouldBeNil)
		}

		Convey("When reducing one level", func() {
			best, err := store.BestPerPlayer(ctx, model.Easy, 1)

			Convey("Then time and errors are independent minima per player", func() {
				So(err, ShouldBeNil)
				So(best, ShouldResemble, []model.BestRun{
					{PlayerID: "p1", Level: 1, BestTime: 30, BestErrors: 1},
					{PlayerID: "p2", Level: 1, BestTime: 45, BestErrors: 0},
				})
			})
		})

		Convey("When reducing a whole difficulty", func() {
			best, err := store.BestPerPlayerPerLevel(ctx, model.Easy)

			Convey("Then there is one row per player and level", func() {
				So(err, ShouldBeNil)
				So(best, ShouldResemble, []model.BestRun{
					{PlayerID: "p1", Level: 1, BestTime: 30, BestErrors: 1},
					{PlayerID: "p1", Level: 2, BestTime: 20, BestErrors: 0},
					{PlayerID: "p2", Level: 1, BestTime: 45, BestErrors: 0},
				})
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)
			_, err := store.BestPerPlayer(ctx, model.Easy, 1)

			Convey("Then reads fail as unavailable instead of returning empty", func() {
				So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(errors.Is(store.Ping(ctx), model.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_Players(t *testing.T) {
	Convey("Given a memory store with one player", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		alice, err := store.CreatePlayer(ctx, model.Player{DisplayName: "alice", PasswordHash: "h"})
		So(err, ShouldBeNil)

		Convey("Then the player can be found by id and name", func() {
			So(alice.ID, ShouldNotBeEmpty)
			byID, err := store.PlayerByID(ctx, alice.ID)
			So(err, ShouldBeNil)
			So(byID.DisplayName, ShouldEqual, "alice")
			byName, err := store.PlayerByName(ctx, "alice")
			So(err, ShouldBeNil)
			So(byName.ID, ShouldEqual, alice.ID)
		})

		Convey("When registering the same name again", func() {
			_, err := store.CreatePlayer(ctx, model.Player{DisplayName: "alice"})
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("When looking up an unknown player", func() {
			_, err := store.PlayerByName(ctx, "bob")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When resolving display names", func() {
			names, err := store.DisplayNames(ctx, []string{alice.ID, "ghost"})

			Convey("Then unknown ids are absent", func() {
				So(err, ShouldBeNil)
				So(names, ShouldResemble, map[string]string{alice.ID: "alice"})
			})
		})
	})
}

func TestMemoryStore_Sessions(t *testing.T) {
	Convey("Given two sessions for one player", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		now := time.Now()
		for _, tok := range []string{"a", "r"} {
			So(store.CreateSession(ctx, model.Session{Token: tok, PlayerID: "p1", ExpiresAt: now.Add(time.Hour)}), ShouldBeNil)
		}

		Convey("When a token is reused", func() {
			err := store.CreateSession(ctx, model.Session{Token: "a", PlayerID: "p2"})
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("When revoking one session twice", func() {
			first := now.Add(time.Minute)
			So(store.RevokeSession(ctx, "a", first), ShouldBeNil)
			So(store.RevokeSession(ctx, "a", first.Add(time.Minute)), ShouldBeNil)

			Convey("Then the first revocation time is kept", func() {
				sess, err := store.SessionByToken(ctx, "a")
				So(err, ShouldBeNil)
				So(*sess.RevokedAt, ShouldEqual, first)
				So(sess.Active(now.Add(2*time.Minute)), ShouldBeFalse)
			})
		})

		Convey("When revoking all sessions of the player", func() {
			So(store.RevokePlayerSessions(ctx, "p1", now), ShouldBeNil)
			r, err := store.SessionByToken(ctx, "r")
			So(err, ShouldBeNil)
			So(r.RevokedAt, ShouldNotBeNil)
		})

		Convey("When revoking an unknown token", func() {
			So(errors.Is(store.RevokeSession(ctx, "missing", now), model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		const writers, perWriter = 8, 50

		var wg sync.WaitGroup
		for w := range writers {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range perWriter {
					_, _ = store.Append(ctx, run(fmt.Sprintf("p%d", w), model.Medium, 1+i%4, 10+i, i%3))
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every append is visible to the next read", func() {
			So(store.Runs(), ShouldHaveLength, writers*perWriter)
			best, err := store.BestPerPlayerPerLevel(ctx, model.Medium)
			So(err, ShouldBeNil)
			So(best, ShouldHaveLength, writers*4)
			for _, b := range best {
				So(b.BestTime, ShouldBeLessThanOrEqualTo, 13)
				So(b.BestErrors, ShouldEqual, 0)
			}
		})
	})
}
