// Package storage archives completed transcripts to S3-compatible object
// storage (DigitalOcean Spaces, MinIO, plain S3).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/jaehk/yt-subtitle-analyzer/models"
)

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

type SpacesClient struct {
	client *s3.Client
	bucket string
}

type archivedTranscript struct {
	URL      string        `json:"url"`
	VideoID  string        `json:"video_id"`
	Title    string        `json:"title"`
	Language string        `json:"language"`
	Source   models.Source `json:"source"`
	Text     string        `json:"text"`
	Summary  string        `json:"summary,omitempty"`
	SavedAt  time.Time     `json:"saved_at"`
}

func NewSpacesClient(cfg SpacesConfig) (*SpacesClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &SpacesClient{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// SaveTranscript mirrors a completed transcript as a JSON object keyed by
// video ID and language.
func (s *SpacesClient) SaveTranscript(ctx context.Context, transcript *models.Transcript) error {
	data := archivedTranscript{
		URL:      transcript.URL,
		VideoID:  transcript.VideoID,
		Title:    transcript.Title,
		Language: transcript.Language,
		Source:   transcript.Source,
		Text:     transcript.Text,
		Summary:  transcript.Summary,
		SavedAt:  time.Now().UTC(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal transcript")
	}

	key := objectKey(transcript.VideoID, transcript.Language)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to archive transcript %s", key)
	}

	return nil
}

// GetTranscript fetches an archived transcript.
func (s *SpacesClient) GetTranscript(ctx context.Context, videoID, language string) (*models.Transcript, error) {
	key := objectKey(videoID, language)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch archive object %s", key)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read archive object")
	}

	var data archivedTranscript
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode archive object")
	}

	return &models.Transcript{
		URL:      data.URL,
		VideoID:  data.VideoID,
		Title:    data.Title,
		Language: data.Language,
		Status:   models.StatusCompleted,
		Source:   data.Source,
		Text:     data.Text,
		Summary:  data.Summary,
	}, nil
}

func objectKey(videoID, language string) string {
	return fmt.Sprintf("transcripts/%s.%s.json", videoID, language)
}
