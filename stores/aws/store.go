package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"codesync-server/core"
)

const keyPrefix = "rooms/"

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewRoomStore creates an S3-backed store. Each room snapshot lives under
// rooms/<roomId> in the bucket.
func NewRoomStore(bucketName string) (core.RoomStore, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}, nil
}

// snapshotKey sanitizes the room id: it must be a simple name, not a path.
func snapshotKey(roomID string) (string, error) {
	if roomID == "" || roomID == "." || roomID == ".." {
		return "", fmt.Errorf("invalid room id %q", roomID)
	}
	if path.Base(roomID) != roomID {
		return "", fmt.Errorf("invalid room id %q: must not be a path", roomID)
	}
	return keyPrefix + roomID, nil
}

func (s *s3Store) Save(ctx context.Context, snapshot *core.RoomSnapshot) error {
	key, err := snapshotKey(snapshot.RoomID)
	if err != nil {
		return err
	}

	stored := *snapshot
	stored.UpdatedAt = time.Now()
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", snapshot.RoomID, err)
	}

	logrus.WithFields(logrus.Fields{"room_id": snapshot.RoomID, "key": key}).Info("Room snapshot saved")
	return nil
}

func (s *s3Store) Load(ctx context.Context, roomID string) (*core.RoomSnapshot, error) {
	key, err := snapshotKey(roomID)
	if err != nil {
		return nil, err
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	var snapshot core.RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode room snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *s3Store) Delete(ctx context.Context, roomID string) error {
	key, err := snapshotKey(roomID)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}

func (s *s3Store) ListRooms(ctx context.Context) ([]core.RoomInfo, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]core.RoomInfo, 0, len(output.Contents))
	for _, object := range output.Contents {
		info := core.RoomInfo{ID: (*object.Key)[len(keyPrefix):]}
		if object.LastModified != nil {
			info.UpdatedAt = *object.LastModified
		}
		rooms = append(rooms, info)
	}
	return rooms, nil
}
