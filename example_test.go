package goGuard_test

import (
	"context"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/redis/go-redis/v9"
)

// ExampleNew builds an engine that counts in Redis, shared by every replica.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	engine, err := goGuard.New().
		WithRedis(rdb).
		WithPolicy(goGuard.DimensionAccount, goGuard.ActionLogin, goGuard.Policy{
			Window:      15 * time.Minute,
			MaxAttempts: 5,
			Lockout:     goGuard.Escalation{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour},
		}).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

func ExampleEngine_CheckAndRecord() {
	engine, err := goGuard.New().Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		res, _ := engine.CheckAndRecord(ctx, goGuard.DimensionAccount, goGuard.ActionLogin, "alice@example.com", nil)
		fmt.Println(res.Allowed, res.Remaining)
	}
	// Output:
	// true 4
	// true 3
	// true 2
	// true 1
	// true 0
	// false 0
}

// ExampleEngine_CheckAndRecordAll throttles one login on the caller's IP and
// the target account together.
func ExampleEngine_CheckAndRecordAll() {
	engine, err := goGuard.New().Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := goGuard.WithClientIP(context.Background(), "203.0.113.7")
	id := goGuard.Identity{IP: "203.0.113.7", Account: "alice@example.com"}

	out := engine.CheckAndRecordAll(ctx, goGuard.ActionLogin, id, &goGuard.RiskContext{Score: 40})
	if !out.Allowed {
		fmt.Println(goGuard.UserMessage(out.MostRestrictive, engine.Now()))
		return
	}
	for _, r := range out.Results {
		fmt.Println(r.Check.Dimension, r.Result.Remaining)
	}

	// After the password checks out:
	_ = engine.RecordSuccessAll(ctx, goGuard.ActionLogin, id)
	// Output:
	// ip 11
	// account 2
}

func ExampleUserMessage() {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	res := goGuard.Result{Allowed: false, LockedUntil: now.Add(5 * time.Minute)}

	fmt.Println(goGuard.UserMessage(res, now))
	// Output: Too many attempts. Please try again in 5 minutes.
}

func ExampleAdjustForRisk() {
	p := goGuard.Policy{Window: time.Hour, MaxAttempts: 10, Lockout: goGuard.Escalation{time.Hour}}

	adjusted := goGuard.AdjustForRisk(p, 90)
	fmt.Println(adjusted.MaxAttempts, adjusted.Lockout[0])
	// Output: 2 1h48m0s
}

func ExampleConfig_Lint() {
	cfg := goGuard.DefaultConfig()
	cfg.Audit.Enabled = false

	for _, w := range cfg.Lint() {
		fmt.Println(w.Severity, w.Code)
	}
	// Output: warn audit_disabled
}
