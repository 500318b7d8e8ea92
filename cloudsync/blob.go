// Copyright 2026 The Atlas Linq Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloudsync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignExpiry = 15 * time.Minute

// ProfileImageKey builds the blob key for a profile image.
func ProfileImageKey(profileID, ext string) string {
	return "profile_images/" + profileID + "." + strings.TrimPrefix(ext, ".")
}

// BackgroundImageKey builds the blob key for a card background image.
func BackgroundImageKey(profileID, ext string) string {
	return "background_images/" + profileID + "_bg." + strings.TrimPrefix(ext, ".")
}

// objectPutter and objectPresigner are the slices of the S3 API the blob
// store uses; tests substitute fakes.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// BlobStore uploads profile and background images to an S3-compatible
// bucket and hands out presigned read URLs.
type BlobStore struct {
	bucket  string
	client  objectPutter
	presign objectPresigner
}

// NewBlobStore builds a blob store from the ambient AWS configuration.
// endpoint overrides the S3 endpoint when non-empty, for S3-compatible
// object stores.
func NewBlobStore(ctx context.Context, bucket, region, endpoint string) (*BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("cloudsync: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &BlobStore{
		bucket:  bucket,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// UploadProfileImage stores data under profile_images/<id>.<ext> and
// returns the blob key.
func (b *BlobStore) UploadProfileImage(ctx context.Context, profileID, ext, contentType string, data []byte) (string, error) {
	key := ProfileImageKey(profileID, ext)
	return key, b.put(ctx, key, contentType, data)
}

// UploadBackgroundImage stores data under background_images/<id>_bg.<ext>
// and returns the blob key.
func (b *BlobStore) UploadBackgroundImage(ctx context.Context, profileID, ext, contentType string, data []byte) (string, error) {
	key := BackgroundImageKey(profileID, ext)
	return key, b.put(ctx, key, contentType, data)
}

func (b *BlobStore) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("cloudsync: upload %s: %w", key, err)
	}
	return nil
}

// PresignedGetURL returns a time-limited read URL for a blob key.
func (b *BlobStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("cloudsync: presign %s: %w", key, err)
	}
	return req.URL, nil
}
