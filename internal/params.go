package internal

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	ActionProcessCOSMedia = "ProcessCosMedia"
	MaxNonce              = 65535
)

// BuildParams assembles the ProcessCosMedia parameters for record. The caller
// must have passed cfg.CheckTranscode.
func BuildParams(record *Record, cfg *Config, now time.Time, nonce int) (Params, error) {
	if record.COS == nil {
		return nil, fmt.Errorf("%w: record has no cos section", ErrMalformedRecord)
	}
	key, err := ParseObjectKey(record.COS.Object.Key)
	if err != nil {
		return nil, err
	}

	params := Params{
		"input.bucket":                        record.COS.Bucket.Name,
		"input.path":                          key.Rel(),
		"output.bucket":                       cfg.outputBucket(),
		"output.dir":                          key.Dir(),
		"mediaProcess.transcode.definition.0": cfg.Definitions[0],
		"Action":                              ActionProcessCOSMedia,
		"Region":                              record.COS.Bucket.Region,
		"Timestamp":                           unixRounded(now),
		"Nonce":                               nonce,
		"SecretId":                            "",
	}
	if cfg.Output != nil && cfg.Output.Dir != "" {
		params["output.dir"] = cfg.Output.Dir
	}
	if cfg.Credentials != nil {
		params["SecretId"] = cfg.Credentials.SecretID
	}
	return params, nil
}

// unixRounded converts now to seconds, rounding half up.
func unixRounded(now time.Time) int64 {
	return now.Add(500 * time.Millisecond).Unix()
}

// RandomNonce returns a value in [0, MaxNonce].
func RandomNonce() int {
	return rand.IntN(MaxNonce + 1)
}
