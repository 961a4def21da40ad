package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestLeaderboardCache_Disabled(t *testing.T) {
	Convey("Given a cache built without a URL", t, func() {
		ctx := context.Background()
		c := New(ctx, "", time.Second)

		Convey("Then it is disabled and every call is a harmless miss", func() {
			So(c.Enabled(), ShouldBeFalse)
			So(c.Set(ctx, "femenino", 0, 10, []model.Profile{{ID: "a"}}), ShouldBeNil)
			got, gen, hit, err := c.Get(ctx, "femenino", 10)
			So(err, ShouldBeNil)
			So(hit, ShouldBeFalse)
			So(got, ShouldBeNil)
			So(gen, ShouldEqual, 0)
			So(c.Invalidate(ctx, "femenino"), ShouldBeNil)
			So(c.Ping(ctx), ShouldBeNil)
			So(c.Close(), ShouldBeNil)
		})
	})

	Convey("Given a cache built with an invalid URL", t, func() {
		c := New(context.Background(), "not-a-url://", time.Second)

		Convey("Then it falls back to disabled", func() {
			So(c.Enabled(), ShouldBeFalse)
		})
	})

	Convey("Given a nil cache", t, func() {
		var c *LeaderboardCache

		Convey("Then Enabled is false rather than a panic", func() {
			So(c.Enabled(), ShouldBeFalse)
		})
	})
}

func TestLeaderboardCache_Keys(t *testing.T) {
	Convey("Given a category and generation", t, func() {
		Convey("Then page keys include generation and limit", func() {
			So(pageKey("femenino", 3, 10), ShouldEqual, "arena:lb:femenino:3:10")
			So(genKey("femenino"), ShouldEqual, "arena:lb:femenino:gen")
		})
	})
}

func TestLeaderboardCache_Redis(t *testing.T) {
	url := os.Getenv("ARENA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ARENA_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	c := NewWithClient(redis.NewClient(opts), time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	Convey("Given a live cache", t, func() {
		ctx := context.Background()
		cat := model.Category("test-" + uuid.NewString()[:8])
		page := []model.Profile{{ID: "a", Category: cat, Rating: 1516, Active: true}}

		Convey("When a miss is filled", func() {
			_, gen, hit, err := c.Get(ctx, cat, 10)
			So(err, ShouldBeNil)
			So(hit, ShouldBeFalse)
			So(c.Set(ctx, cat, gen, 10, page), ShouldBeNil)

			Convey("Then the next read hits", func() {
				got, _, hit, err := c.Get(ctx, cat, 10)
				So(err, ShouldBeNil)
				So(hit, ShouldBeTrue)
				So(got, ShouldResemble, page)
			})

			Convey("Then an invalidation hides it", func() {
				So(c.Invalidate(ctx, cat), ShouldBeNil)
				_, _, hit, err := c.Get(ctx, cat, 10)
				So(err, ShouldBeNil)
				So(hit, ShouldBeFalse)
			})
		})

		Convey("When a fill races with an invalidation", func() {
			_, gen, _, _ := c.Get(ctx, cat, 5)
			So(c.Invalidate(ctx, cat), ShouldBeNil)
			So(c.Set(ctx, cat, gen, 5, page), ShouldBeNil)

			Convey("Then the stale fill is never served", func() {
				_, _, hit, err := c.Get(ctx, cat, 5)
				So(err, ShouldBeNil)
				So(hit, ShouldBeFalse)
			})
		})
	})
}
