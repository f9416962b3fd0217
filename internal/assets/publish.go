package assets

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/kholmgren/faas-gateway-deployer/internal"
)

type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads manifest entries as public-read objects keyed by their
// manifest path.
type Publisher struct {
	API    S3API
	Region string

	// Dir is the directory manifest paths are relative to.
	Dir string
	Log internal.Logger
}

// Publish uploads every file in m in order and returns the homepage URL.
func (p *Publisher) Publish(ctx context.Context, m Manifest) (string, error) {
	for _, name := range m.Files {
		if err := p.upload(ctx, m.Bucket, name); err != nil {
			return "", err
		}
		p.Log.Debugf("uploaded %s to s3://%s/%s", name, m.Bucket, name)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.Bucket, p.Region, m.Homepage), nil
}

func (p *Publisher) upload(ctx context.Context, bucket, name string) error {
	path := filepath.Join(p.Dir, name)
	contentType, err := ContentType(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = p.API.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(filepath.ToSlash(name)),
		Body:        f,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", name, bucket, err)
	}
	return nil
}

// ContentType guesses from the extension first and sniffs the content when
// the extension is unknown.
func ContentType(path string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t, nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect content type of %s: %w", path, err)
	}
	return m.String(), nil
}
