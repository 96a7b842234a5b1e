package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// Library is the name every embedded script registers under.
const Library = "livebid"

// Functions lists what the auction store calls through FCALL.
var Functions = []string{
	"auction_create",
	"auction_place_bid",
	"auction_finalize",
	"auction_delete",
}

// Sources returns the embedded Lua libraries keyed by file name.
func Sources() (map[string]string, error) {
	files, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embed dir: %w", err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}
		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return nil, err
		}
		out[f.Name()] = string(code)
	}
	return out, nil
}

// LoadAll loads or replaces every embedded library in Redis.
func LoadAll(ctx context.Context, rdb redis.Cmdable) error {
	sources, err := Sources()
	if err != nil {
		return err
	}
	for name, code := range sources {
		if err := rdb.FunctionLoadReplace(ctx, code).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", name, err)
		}
		zap.L().Info("lua function loaded", zap.String("file", name))
	}
	return nil
}
