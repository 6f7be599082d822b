package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/insights-console/internal/bus"
	"github.com/Ashfaaq98/insights-console/internal/store"
)

var (
	confirmReset bool
	resetRedis   bool
	resetState   bool
	redisOnly    bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local state and/or the Redis invalidation stream",
	Long: `Reset clears the local state database (cached key actors and the activity
log) and/or the Redis invalidation stream shared between consoles.
Reports on the backend are never touched.

By default only local state is reset. Use --redis-stream to also drop the
invalidation stream, or --redis-only to drop just the stream. The Redis
server is taken from --redis or redis.url.

Examples:
  # Reset local state (requires confirmation)
  insights-console reset

  # Reset with automatic confirmation
  insights-console reset --yes

  # Reset local state and the Redis stream
  insights-console reset --redis-stream --redis redis://localhost:6379

  # Reset only the Redis stream
  insights-console reset --redis-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-stream", false, "Also delete the Redis invalidation stream")
	resetCmd.Flags().BoolVar(&redisOnly, "redis-only", false, "Reset only the Redis invalidation stream")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	resetState = !redisOnly
	if redisOnly {
		resetRedis = true
	}

	var targets []string
	if resetState {
		targets = append(targets, "local state")
	}
	if resetRedis {
		targets = append(targets, "Redis invalidation stream")
	}
	fmt.Printf("This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset {
		confirmer := promptConfirmer(os.Stdin, os.Stdout)
		if !confirmer.Confirm(ctx, "Are you sure you want to continue?") {
			fmt.Println("Reset operation cancelled.")
			return nil
		}
	}

	if resetRedis {
		if err := resetRedisStream(ctx, cfg.Redis.URL); err != nil {
			if !resetState {
				return fmt.Errorf("failed to reset Redis stream: %w", err)
			}
			fmt.Printf("Warning: Failed to reset Redis stream: %v\n", err)
		} else {
			fmt.Println("✓ Redis stream cleared successfully")
		}
	}

	if resetState {
		path := resolvePathRelativeToBase(getWorkingDir(), cfg.State.Path)
		if err := resetLocalState(ctx, path); err != nil {
			return fmt.Errorf("failed to reset local state: %w", err)
		}
		fmt.Println("✓ Local state cleared successfully")
	}

	fmt.Println("Reset operation completed successfully!")
	return nil
}

func resetRedisStream(ctx context.Context, redisURL string) error {
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	n, err := client.XLen(ctx, bus.Stream).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read stream length: %w", err)
	}
	if n == 0 {
		fmt.Println("No Redis stream entries found to clear")
	} else {
		fmt.Printf("Clearing %d stream entries...\n", n)
	}
	return client.Del(ctx, bus.Stream).Err()
}

func resetLocalState(ctx context.Context, path string) error {
	st, err := store.NewStore(path)
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := st.Keys(ctx)
	if err != nil {
		return err
	}
	if err := st.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("Removed %d cached value(s) and the activity log from %s\n", len(keys), st.Path())
	return nil
}
