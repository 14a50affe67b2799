package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/buffermesh/buffermesh/internal/common"
	sc "github.com/buffermesh/buffermesh/internal/server/config"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// MessageService stores messages and routes them between buffers.
//
// Every message is persisted on its source buffer. An OUTGOING message is
// then fanned out: each connection scheme of the owning client whose
// used-buffer set contains the source buffer contributes the destinations
// its transitions list for that buffer, and each distinct destination
// receives one synthesized INCOMING copy. Routing is a single hop; the
// synthesized copies never route again.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config

	schemes SchemeDirectory
	buffers BufferDirectory
	devices DeviceDirectory

	node *snowflake.Node
	now  func() time.Time
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	schemes SchemeDirectory, buffers BufferDirectory, devices DeviceDirectory,
	node *snowflake.Node) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		config:      cfg,
		schemes:     schemes,
		buffers:     buffers,
		devices:     devices,
		node:        node,
		now:         time.Now,
	}
}

// AddMessage stores a message on the client's buffer and, for OUTGOING
// content, routes copies to every destination reachable in one hop. The
// stored source message is returned; routing products are not.
func (s *MessageService) AddMessage(ctx context.Context, clientUID, bufferUID, content, contentType, attachmentKey string) (*models.Message, error) {
	if contentType != models.ContentTypeOutgoing && contentType != models.ContentTypeIncoming {
		return nil, common.ErrorInvalidContentType
	}

	buffer, err := s.buffers.GetBuffer(ctx, bufferUID)
	if err != nil {
		return nil, err
	}
	if buffer.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}

	message := &models.Message{
		UID:           s.node.Generate().String(),
		BufferUID:     bufferUID,
		Content:       content,
		ContentType:   contentType,
		AttachmentKey: attachmentKey,
		CreatedAt:     s.now(),
	}
	if err := s.repomanager.Messages(s.db).Add(ctx, message); err != nil {
		return nil, fmt.Errorf("error storing message: %w", err)
	}

	if contentType == models.ContentTypeOutgoing {
		if err := s.route(ctx, clientUID, message); err != nil {
			return nil, err
		}
	}
	return message, nil
}

// route fans one OUTGOING message out. Destinations are collected across
// all of the owning client's schemes that use the source buffer and
// deduplicated by buffer UID, so overlapping schemes produce one copy, not
// several.
func (s *MessageService) route(ctx context.Context, clientUID string, source *models.Message) error {
	matching, err := s.schemes.SchemesUsingBuffer(ctx, source.BufferUID)
	if err != nil {
		return fmt.Errorf("error resolving schemes: %w", err)
	}

	seen := make(map[string]bool)
	var destinations []string
	for _, scheme := range matching {
		if scheme.ClientUID != clientUID {
			continue
		}
		for _, destination := range scheme.Transitions[source.BufferUID] {
			if destination == source.BufferUID || seen[destination] {
				continue
			}
			seen[destination] = true
			destinations = append(destinations, destination)
		}
	}

	repo := s.repomanager.Messages(s.db)
	now := s.now()
	for _, destination := range destinations {
		copy := &models.Message{
			UID:           s.node.Generate().String(),
			BufferUID:     destination,
			Content:       source.Content,
			ContentType:   models.ContentTypeIncoming,
			AttachmentKey: source.AttachmentKey,
			CreatedAt:     now,
		}
		if err := repo.Add(ctx, copy); err != nil {
			return fmt.Errorf("error routing message to buffer %s: %w", destination, err)
		}
	}
	return nil
}

// GetMessagesByBuffer returns one page of the buffer's messages, oldest
// first. With deleteOnGet the returned page, and only the returned page,
// is removed from storage.
func (s *MessageService) GetMessagesByBuffer(ctx context.Context, clientUID, bufferUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	buffer, err := s.buffers.GetBuffer(ctx, bufferUID)
	if err != nil {
		return nil, err
	}
	if buffer.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}
	return s.page(ctx, []string{bufferUID}, deleteOnGet, offset, limit)
}

// GetMessagesByScheme pages over the union of the scheme's used buffers.
func (s *MessageService) GetMessagesByScheme(ctx context.Context, clientUID, schemeUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	scheme, err := s.schemes.GetScheme(ctx, schemeUID)
	if err != nil {
		return nil, err
	}
	if scheme.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}
	if len(scheme.UsedBuffers) == 0 {
		return []*models.Message{}, nil
	}
	return s.page(ctx, scheme.UsedBuffers, deleteOnGet, offset, limit)
}

// GetMessagesByDevice pages over the buffers attached to the device.
func (s *MessageService) GetMessagesByDevice(ctx context.Context, clientUID, deviceUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	device, err := s.devices.GetDevice(ctx, deviceUID)
	if err != nil {
		return nil, err
	}
	if device.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}

	buffers, err := s.buffers.BuffersByDevice(ctx, deviceUID)
	if err != nil {
		return nil, fmt.Errorf("error resolving device buffers: %w", err)
	}
	if len(buffers) == 0 {
		return []*models.Message{}, nil
	}

	uids := make([]string, 0, len(buffers))
	for _, buffer := range buffers {
		uids = append(uids, buffer.UID)
	}
	return s.page(ctx, uids, deleteOnGet, offset, limit)
}

func (s *MessageService) page(ctx context.Context, bufferUIDs []string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	repo := s.repomanager.Messages(s.db)

	page, err := repo.ListByBuffers(ctx, bufferUIDs, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("error reading messages: %w", err)
	}
	if len(page) == 0 {
		return []*models.Message{}, nil
	}

	if deleteOnGet {
		uids := make([]string, 0, len(page))
		for _, message := range page {
			uids = append(uids, message.UID)
		}
		if err := repo.DeleteByUIDs(ctx, uids); err != nil {
			return nil, fmt.Errorf("error deleting read messages: %w", err)
		}
	}
	return page, nil
}

// PurgeOlderThan removes every message created before cutoff, across all
// buffers, and returns the number removed.
func (s *MessageService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repomanager.Messages(s.db).DeleteOlderThan(ctx, cutoff)
}

func randomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("attachments/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *MessageService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// GetAttachmentUploadURL returns a fresh storage key and a presigned PUT
// URL for it. The caller uploads the payload directly and then stores the
// key on the message.
func (s *MessageService) GetAttachmentUploadURL(ctx context.Context) (string, string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// GetAttachmentDownloadURL returns a presigned GET URL for a stored
// attachment key.
func (s *MessageService) GetAttachmentDownloadURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
