package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhsh/time-capsule/internal/sweeper"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, f.err
}

func TestArchive(t *testing.T) {
	putter := &fakePutter{}
	s := &S3Storage{client: putter, bucket: "capsule-bucket"}
	rec := sweeper.ExpiryRecord{
		CapsuleID: uuid.New(),
		OwnerID:   uuid.New(),
		UnlockAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiredAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, s.Archive(context.Background(), rec))
	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "capsule-bucket", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, "expired/"+rec.OwnerID.String()+"/"+rec.CapsuleID.String()+".json",
		aws.ToString(putter.inputs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(putter.bodies[0], &got))
	assert.Equal(t, rec.CapsuleID.String(), got["capsule_id"])
	assert.NotContains(t, got, "message")
	assert.NotContains(t, got, "secret_hash")
}

func TestArchive_Error(t *testing.T) {
	s := &S3Storage{client: &fakePutter{err: errors.New("denied")}, bucket: "b"}
	err := s.Archive(context.Background(), sweeper.ExpiryRecord{})
	assert.ErrorContains(t, err, "denied")
}
