package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/model"
)

// Read decodes newline-delimited match results, as written by a dry run.
// Any malformed or incomplete result aborts the read.
func Read(ctx context.Context, r io.Reader) ([]model.MatchResult, error) {
	dec := json.NewDecoder(r)
	var out []model.MatchResult
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "upload: context cancelled")
		}
		var res model.MatchResult
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "upload: decode result %d", n)
		}
		if res.CanonicalID == "" {
			return nil, eris.Errorf("upload: result %d has no canonical_id", n)
		}
		f, err := model.ParseField(string(res.Field))
		if err != nil {
			return nil, eris.Wrapf(err, "upload: result %d", n)
		}
		res.Field = f
		out = append(out, res)
	}
}

// ReadFile reads results from path.
func ReadFile(ctx context.Context, path string) ([]model.MatchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "upload: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read(ctx, f)
}
