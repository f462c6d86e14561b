package internal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/vod-trigger/internal"
)

type fakeBucketHeader struct {
	buckets []string
	err     error
}

func (f *fakeBucketHeader) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.buckets = append(f.buckets, aws.ToString(params.Bucket))
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestCheckOutputBucket(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	ctx := context.Background()

	e.Run("Reachable", func(e exam.E) {
		client := &fakeBucketHeader{}
		err := internal.CheckOutputBucket(ctx, client, testConfig("out-1250000000"))
		exam.Equal(e, env, true, err == nil)
		exam.Equal(e, env, []string{"out-1250000000"}, client.buckets)
	})

	e.Run("Unreachable", func(e exam.E) {
		denied := errors.New("access denied")
		client := &fakeBucketHeader{err: denied}
		err := internal.CheckOutputBucket(ctx, client, testConfig("out"))
		exam.Equal(e, env, true, errors.Is(err, denied))
	})

	e.Run("NotConfigured", func(e exam.E) {
		client := &fakeBucketHeader{}
		err := internal.CheckOutputBucket(ctx, client, testConfig(""))
		exam.Equal(e, env, true, errors.Is(err, internal.ErrNoOutputBucket))
		exam.Equal(e, env, 0, len(client.buckets))
	})

	e.Run("NewCOSClient", func(e exam.E) {
		cfg := testConfig("out")
		cfg.COSEndpoint = "https://cos.ap-shanghai.myqcloud.com"
		client := internal.NewCOSClient(cfg)
		exam.Equal(e, env, "ap-shanghai", client.Options().Region)
		exam.Equal(e, env, cfg.COSEndpoint, aws.ToString(client.Options().BaseEndpoint))
	})
}

func TestCOSRegion(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()

	tests := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "https://cos.ap-beijing.myqcloud.com", want: "ap-beijing"},
		{endpoint: "https://cos.ap-guangzhou.myqcloud.com:443", want: "ap-guangzhou"},
		{endpoint: "http://localhost:9000", want: "ap-guangzhou"},
		{endpoint: "", want: "ap-guangzhou"},
	}
	for _, tt := range tests {
		e.Run(tt.endpoint, func(e exam.E) {
			exam.Equal(e, env, tt.want, internal.COSRegion(tt.endpoint))
		})
	}
}
