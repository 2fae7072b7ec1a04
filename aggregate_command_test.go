package herald

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCommandBase_ExecuteChild(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the child result and executes it once", func(t *testing.T) {
		agg := &NewsletterCommand{}
		child := &CountingCommand{Value: "V"}

		result, err := agg.ExecuteChild(ctx, child, "evt")

		require.NoError(t, err)
		assert.Equal(t, "V", result)
		assert.Equal(t, 1, child.Calls())
	})

	t.Run("nil result is returned as nil", func(t *testing.T) {
		agg := &NewsletterCommand{}

		result, err := agg.ExecuteChild(ctx, &CountingCommand{}, "evt")

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("derives the event name from the child", func(t *testing.T) {
		agg := &NewsletterCommand{}
		child := &CountingCommand{Value: 1}
		var seen *CommandEvent
		agg.EventManager().Attach("-counting-command", func(ctx context.Context, e Event) error {
			seen = e.(*CommandEvent)
			return nil
		}, WithPriority(10))

		_, err := agg.ExecuteChild(ctx, child, "")

		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, "-counting-command", seen.Name())
		assert.Same(t, child, seen.Command())
	})

	t.Run("custom separator", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.Configure(WithEventNameSeparator("_"))
		var names []string
		agg.EventManager().Attach(WildcardEvent, func(ctx context.Context, e Event) error {
			names = append(names, e.Name())
			return nil
		})

		_, err := agg.ExecuteChild(ctx, &SendEmailCommand{To: "a"}, "")

		require.NoError(t, err)
		assert.Equal(t, []string{"_send_email_command"}, names)
	})

	t.Run("existing listeners observe the result after the child", func(t *testing.T) {
		agg := &NewsletterCommand{}
		var observed interface{}
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			observed, _ = e.(*CommandEvent).Result()
			return nil
		}, WithPriority(-1))

		_, err := agg.ExecuteChild(ctx, &CountingCommand{Value: "V"}, "evt")

		require.NoError(t, err)
		assert.Equal(t, "V", observed)
	})

	t.Run("listeners can replace the result", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			e.(*CommandEvent).SetResult("replaced")
			return nil
		}, WithPriority(-1))

		result, err := agg.ExecuteChild(ctx, &CountingCommand{Value: "V"}, "evt")

		require.NoError(t, err)
		assert.Equal(t, "replaced", result)
	})

	t.Run("nil child", func(t *testing.T) {
		agg := &NewsletterCommand{}

		_, err := agg.ExecuteChild(ctx, nil, "evt")
		assert.ErrorIs(t, err, ErrNilCommand)

		var typedNil *CountingCommand
		_, err = agg.ExecuteChild(ctx, typedNil, "evt")
		assert.ErrorIs(t, err, ErrNilCommand)
	})

	t.Run("child is not owned by the aggregate event manager", func(t *testing.T) {
		agg := &NewsletterCommand{}
		child := &CountingCommand{}

		_, err := agg.ExecuteChild(ctx, child, "evt")

		require.NoError(t, err)
		assert.NotSame(t, agg.EventManager(), child.EventManager())
		assert.Equal(t, 0, child.EventManager().ListenerCount("evt"))
	})
}

func TestAggregateCommandBase_Failure(t *testing.T) {
	ctx := context.Background()

	t.Run("propagates the same error and sets no result", func(t *testing.T) {
		agg := &NewsletterCommand{}
		boom := errors.New("boom")
		child := &CountingCommand{Value: "V", Err: boom}
		var event *CommandEvent
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			event = e.(*CommandEvent)
			return nil
		}, WithPriority(10))

		result, err := agg.ExecuteChild(ctx, child, "evt")

		assert.Same(t, boom, err)
		assert.Nil(t, result)
		assert.Equal(t, 1, child.Calls())
		require.NotNil(t, event)
		assert.False(t, event.HasResult())
	})

	t.Run("later listeners do not run", func(t *testing.T) {
		agg := &NewsletterCommand{}
		var after bool
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			after = true
			return nil
		}, WithPriority(-1))

		_, err := agg.ExecuteChild(ctx, &CountingCommand{Err: errors.New("fail")}, "evt")

		require.Error(t, err)
		assert.False(t, after)
	})

	t.Run("listener error before the child prevents execution", func(t *testing.T) {
		agg := &NewsletterCommand{}
		veto := errors.New("veto")
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			return veto
		}, WithPriority(10))
		child := &CountingCommand{}

		_, err := agg.ExecuteChild(ctx, child, "evt")

		assert.Same(t, veto, err)
		assert.Equal(t, 0, child.Calls())
		assert.Equal(t, 1, agg.EventManager().ListenerCount("evt"))
	})

	t.Run("stopped propagation skips the child", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			e.StopPropagation(true)
			return nil
		}, WithPriority(10))
		child := &CountingCommand{Value: "V"}

		result, err := agg.ExecuteChild(ctx, child, "evt")

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 0, child.Calls())
		assert.Equal(t, 1, agg.EventManager().ListenerCount("evt"))
	})

	t.Run("panics propagate without recovery middleware", func(t *testing.T) {
		agg := &NewsletterCommand{}

		assert.PanicsWithValue(t, "kaboom", func() {
			_, _ = agg.ExecuteChild(ctx, &CountingCommand{Panic: "kaboom"}, "evt")
		})
	})
}

func TestAggregateCommandBase_Subscription(t *testing.T) {
	ctx := context.Background()

	t.Run("once mode does not grow the registry", func(t *testing.T) {
		agg := &NewsletterCommand{}
		first := &CountingCommand{}
		second := &CountingCommand{}

		_, err := agg.ExecuteChild(ctx, first, "evt")
		require.NoError(t, err)
		_, err = agg.ExecuteChild(ctx, second, "evt")
		require.NoError(t, err)

		assert.Equal(t, SubscribeOnce, agg.SubscriptionMode())
		assert.Equal(t, 1, first.Calls())
		assert.Equal(t, 1, second.Calls())
		assert.Equal(t, 0, agg.EventManager().ListenerCount("evt"))
	})

	t.Run("persistent mode accumulates listeners", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.Configure(WithChildSubscription(SubscribePersistent))
		first := &CountingCommand{Value: 1}
		second := &CountingCommand{Value: 2}

		_, err := agg.ExecuteChild(ctx, first, "evt")
		require.NoError(t, err)
		result, err := agg.ExecuteChild(ctx, second, "evt")
		require.NoError(t, err)

		assert.Equal(t, 2, result)
		assert.Equal(t, 1, first.Calls())
		// Both accumulated listeners run the second child.
		assert.Equal(t, 2, second.Calls())
		assert.Equal(t, 2, agg.EventManager().ListenerCount("evt"))
	})

	t.Run("persistent listeners can be cleared", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.Configure(WithChildSubscription(SubscribePersistent))

		_, err := agg.ExecuteChild(ctx, &CountingCommand{}, "evt")
		require.NoError(t, err)
		agg.EventManager().ClearListeners("evt")

		child := &CountingCommand{}
		_, err = agg.ExecuteChild(ctx, child, "evt")
		require.NoError(t, err)

		assert.Equal(t, 1, child.Calls())
	})

	t.Run("distinct names do not interfere", func(t *testing.T) {
		agg := &NewsletterCommand{}
		agg.Configure(WithChildSubscription(SubscribePersistent))
		a := &CountingCommand{}
		b := &CountingCommand{}

		_, err := agg.ExecuteChild(ctx, a, "a")
		require.NoError(t, err)
		_, err = agg.ExecuteChild(ctx, b, "b")
		require.NoError(t, err)

		assert.Equal(t, 1, a.Calls())
		assert.Equal(t, 1, b.Calls())
	})
}

func TestAggregateCommandBase_Concurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("overlapping delegations under one name run their own child once", func(t *testing.T) {
		agg := &NewsletterCommand{}
		childA := &CountingCommand{Value: "a"}
		childB := &CountingCommand{Value: "b"}
		blocked := make(chan struct{})
		release := make(chan struct{})
		// Hold B's trigger while A's delegation runs with B's listener attached.
		agg.EventManager().Attach("evt", func(ctx context.Context, e Event) error {
			if e.(*CommandEvent).Command() == Command(childB) {
				close(blocked)
				<-release
			}
			return nil
		}, WithPriority(50))

		var (
			resultB interface{}
			errB    error
			wg      sync.WaitGroup
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			resultB, errB = agg.ExecuteChild(ctx, childB, "evt")
		}()
		<-blocked

		resultA, errA := agg.ExecuteChild(ctx, childA, "evt")
		close(release)
		wg.Wait()

		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, "a", resultA)
		assert.Equal(t, "b", resultB)
		assert.Equal(t, 1, childA.Calls())
		assert.Equal(t, 1, childB.Calls())
		assert.Equal(t, 1, agg.EventManager().ListenerCount("evt"))
	})

	t.Run("parallel delegations each return their own result", func(t *testing.T) {
		agg := &NewsletterCommand{}
		const workers = 50

		children := make([]*CountingCommand, workers)
		results := make([]interface{}, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			children[i] = &CountingCommand{Value: i}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = agg.ExecuteChild(ctx, children[i], "evt")
			}(i)
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, i, results[i])
			assert.Equal(t, 1, children[i].Calls())
		}
		assert.Equal(t, 0, agg.EventManager().ListenerCount("evt"))
	})
}

func TestAggregateCommandBase_Wildcard(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []SubscriptionMode{SubscribeOnce, SubscribePersistent} {
		t.Run(mode.String()+" mode rejects the wildcard name", func(t *testing.T) {
			agg := &NewsletterCommand{}
			agg.Configure(WithChildSubscription(mode))
			child := &CountingCommand{}

			result, err := agg.ExecuteChild(ctx, child, WildcardEvent)

			assert.ErrorIs(t, err, ErrWildcardDelegation)
			assert.Nil(t, result)
			assert.Equal(t, 0, child.Calls())
			assert.Equal(t, 0, agg.EventManager().ListenerCount(WildcardEvent))

			other := &CountingCommand{}
			_, err = agg.ExecuteChild(ctx, other, "evt")
			require.NoError(t, err)
			assert.Equal(t, 1, other.Calls())
		})
	}
}

func TestAggregateCommandBase_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("constructor applies options", func(t *testing.T) {
		base := NewAggregateCommandBase(WithChildSubscription(SubscribePersistent))
		assert.Equal(t, SubscribePersistent, base.SubscriptionMode())
	})

	t.Run("middleware wraps child execution", func(t *testing.T) {
		agg := &NewsletterCommand{}
		var order []string
		var eventName string
		mw := func(label string) Middleware {
			return func(next ExecuteFunc) ExecuteFunc {
				return func(ctx context.Context, cmd Command) (interface{}, error) {
					order = append(order, label+":before")
					eventName = EventNameFromContext(ctx)
					result, err := next(ctx, cmd)
					order = append(order, label+":after")
					return result, err
				}
			}
		}
		agg.Configure(WithDelegationMiddleware(mw("outer"), mw("inner")))

		result, err := agg.ExecuteChild(ctx, &CountingCommand{Value: "V"}, "evt")

		require.NoError(t, err)
		assert.Equal(t, "V", result)
		assert.Equal(t, "evt", eventName)
		assert.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)
	})

	t.Run("logger receives delegation records", func(t *testing.T) {
		logger := &recordingLogger{}
		agg := &NewsletterCommand{}
		agg.Configure(WithAggregateLogger(logger))

		_, err := agg.ExecuteChild(ctx, &CountingCommand{Err: errors.New("x")}, "evt")

		require.Error(t, err)
		assert.Equal(t, []string{"Delegating to child command", "Child command failed"}, logger.messages("debug"))
	})
}

func TestAggregateCommand_Execute(t *testing.T) {
	t.Run("delegates to every recipient", func(t *testing.T) {
		agg := &NewsletterCommand{Recipients: []string{"a@example.com", "b@example.com"}}
		var delegations int
		agg.EventManager().Attach("-send-email-command", func(ctx context.Context, e Event) error {
			delegations++
			return nil
		}, WithPriority(10))

		result, err := agg.Execute(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []interface{}{"sent:a@example.com", "sent:b@example.com"}, result)
		assert.Equal(t, 2, delegations)
	})
}

func TestSubscriptionMode(t *testing.T) {
	assert.Equal(t, "once", SubscribeOnce.String())
	assert.Equal(t, "persistent", SubscribePersistent.String())
	assert.Equal(t, "SubscriptionMode(7)", SubscriptionMode(7).String())

	mode, err := ParseSubscriptionMode("persistent")
	require.NoError(t, err)
	assert.Equal(t, SubscribePersistent, mode)

	mode, err = ParseSubscriptionMode("")
	require.NoError(t, err)
	assert.Equal(t, SubscribeOnce, mode)

	_, err = ParseSubscriptionMode("sometimes")
	assert.Error(t, err)
}
