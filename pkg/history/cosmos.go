package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// Partition layout: every thread document lives in one fixed partition so
// listing and title lookups are single-partition queries, while messages and
// run events are partitioned by their thread id. The container's partition
// key path must be /pk.
const threadsPartition = "threads"

const (
	kindThread   = "thread"
	kindMessage  = "message"
	kindRunEvent = "run_event"
)

type cosmosThread struct {
	ID           string    `json:"id"`
	PK           string    `json:"pk"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	AgentName    string    `json:"agentName"`
	Variant      string    `json:"variant"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Epoch millis mirror of UpdatedAt. RFC 3339 strings with mixed
	// fractional precision do not sort correctly, numbers do.
	UpdatedAtMs int64 `json:"updatedAtMs"`
}

type cosmosMessage struct {
	ID        string    `json:"id"`
	PK        string    `json:"pk"`
	Kind      string    `json:"kind"`
	ThreadID  string    `json:"threadId"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type cosmosRunEvent struct {
	ID          string    `json:"id"`
	PK          string    `json:"pk"`
	Kind        string    `json:"kind"`
	ThreadID    string    `json:"threadId"`
	SessionID   string    `json:"sessionId"`
	EventType   string    `json:"eventType"`
	Payload     string    `json:"payload"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedAtMs int64     `json:"createdAtMs"`
}

// CosmosStore implements Store on a Cosmos DB NoSQL container. It is the
// backend deployed environments use, matching the Cosmos account the
// jumpstart infrastructure provisions.
type CosmosStore struct {
	container *azcosmos.ContainerClient
	log       utils.ExtendedLogger
}

// NewCosmosStore connects to the Cosmos account described by cfg. When
// AZURE_COSMOS_DB_KEY is set the store authenticates with the account key,
// otherwise it uses DefaultAzureCredential (managed identity, az login).
func NewCosmosStore(cfg config.CosmosConfig, log utils.ExtendedLogger) (*CosmosStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	containerName := cfg.Container
	if containerName == "" {
		containerName = config.DefaultCosmosContainer
	}

	var client *azcosmos.Client
	var err error
	if cfg.Key != "" {
		cred, kerr := azcosmos.NewKeyCredential(cfg.Key)
		if kerr != nil {
			return nil, fmt.Errorf("cosmos key credential: %w", kerr)
		}
		client, err = azcosmos.NewClientWithKey(cfg.Endpoint, cred, nil)
	} else {
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("default azure credential: %w", cerr)
		}
		client, err = azcosmos.NewClient(cfg.Endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cosmos client: %w", err)
	}

	container, err := client.NewContainer(cfg.Database, containerName)
	if err != nil {
		return nil, fmt.Errorf("cosmos container %s/%s: %w", cfg.Database, containerName, err)
	}

	log.Debugf("history: cosmos store ready at %s (%s/%s)", cfg.Endpoint, cfg.Database, containerName)
	return &CosmosStore{container: container, log: log}, nil
}

func (s *CosmosStore) CreateThread(ctx context.Context, req *CreateThreadRequest) (*Thread, error) {
	now := time.Now().UTC()
	doc := cosmosThread{
		ID:        req.ID,
		PK:        threadsPartition,
		Kind:      kindThread,
		Title:     req.Title,
		AgentName: req.AgentName,
		Variant:   req.Variant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UpdatedAtMs = now.UnixMilli()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal thread: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	if _, err := s.container.CreateItem(ctx, pk, data, nil); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	s.log.Debugf("history: created thread %s (%s)", doc.ID, doc.Title)
	return doc.toThread(), nil
}

func (s *CosmosStore) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	doc, _, err := s.readThreadDoc(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return doc.toThread(), nil
}

func (s *CosmosStore) FindThreadByTitle(ctx context.Context, title string) (*Thread, error) {
	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	pager := s.container.NewQueryItemsPager(
		`SELECT * FROM c WHERE c.kind = @kind AND c.title = @title ORDER BY c.updatedAtMs DESC OFFSET 0 LIMIT 1`,
		pk,
		&azcosmos.QueryOptions{QueryParameters: []azcosmos.QueryParameter{
			{Name: "@kind", Value: kindThread},
			{Name: "@title", Value: title},
		}},
	)

	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("find thread by title: %w", err)
		}
		for _, raw := range resp.Items {
			var doc cosmosThread
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode thread: %w", err)
			}
			return doc.toThread(), nil
		}
	}
	return nil, ErrThreadNotFound
}

func (s *CosmosStore) ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	pager := s.container.NewQueryItemsPager(
		`SELECT * FROM c WHERE c.kind = @kind ORDER BY c.updatedAtMs DESC OFFSET @offset LIMIT @limit`,
		pk,
		&azcosmos.QueryOptions{QueryParameters: []azcosmos.QueryParameter{
			{Name: "@kind", Value: kindThread},
			{Name: "@offset", Value: offset},
			{Name: "@limit", Value: limit},
		}},
	)

	threads := []*Thread{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, raw := range resp.Items {
			var doc cosmosThread
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode thread: %w", err)
			}
			threads = append(threads, doc.toThread())
		}
	}
	return threads, nil
}

func (s *CosmosStore) TouchThread(ctx context.Context, threadID string) error {
	doc, etag, err := s.readThreadDoc(ctx, threadID)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	doc.UpdatedAtMs = doc.UpdatedAt.UnixMilli()
	return s.replaceThreadDoc(ctx, doc, etag)
}

func (s *CosmosStore) DeleteThread(ctx context.Context, threadID string) error {
	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	if _, err := s.container.DeleteItem(ctx, pk, threadID, nil); err != nil {
		if isCosmosNotFound(err) {
			return ErrThreadNotFound
		}
		return fmt.Errorf("delete thread: %w", err)
	}

	// Cosmos has no cascading delete; sweep the thread's own partition.
	threadPK := azcosmos.NewPartitionKeyString(threadID)
	pager := s.container.NewQueryItemsPager(`SELECT c.id FROM c`, threadPK, nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list thread items: %w", err)
		}
		for _, raw := range resp.Items {
			var item struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return fmt.Errorf("decode thread item: %w", err)
			}
			if _, err := s.container.DeleteItem(ctx, threadPK, item.ID, nil); err != nil && !isCosmosNotFound(err) {
				return fmt.Errorf("delete thread item %s: %w", item.ID, err)
			}
		}
	}
	return nil
}

func (s *CosmosStore) AppendMessage(ctx context.Context, req *AppendMessageRequest) (*Message, error) {
	if !ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	threadDoc, etag, err := s.readThreadDoc(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := cosmosMessage{
		ID:        uuid.NewString(),
		PK:        req.ThreadID,
		Kind:      kindMessage,
		ThreadID:  req.ThreadID,
		Seq:       int64(threadDoc.MessageCount) + 1,
		Role:      req.Role,
		Content:   req.Content,
		CreatedAt: now,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(req.ThreadID)
	if _, err := s.container.CreateItem(ctx, pk, data, nil); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	threadDoc.MessageCount++
	threadDoc.UpdatedAt = now
	threadDoc.UpdatedAtMs = now.UnixMilli()
	if err := s.replaceThreadDoc(ctx, threadDoc, etag); err != nil {
		return nil, err
	}

	return doc.toMessage(), nil
}

func (s *CosmosStore) ListMessages(ctx context.Context, threadID string) ([]*Message, error) {
	pk := azcosmos.NewPartitionKeyString(threadID)
	pager := s.container.NewQueryItemsPager(
		`SELECT * FROM c WHERE c.kind = @kind ORDER BY c.seq ASC`,
		pk,
		&azcosmos.QueryOptions{QueryParameters: []azcosmos.QueryParameter{
			{Name: "@kind", Value: kindMessage},
		}},
	)

	messages := []*Message{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, raw := range resp.Items {
			var doc cosmosMessage
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, doc.toMessage())
		}
	}
	return messages, nil
}

func (s *CosmosStore) StoreRunEvent(ctx context.Context, event *RunEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	doc := cosmosRunEvent{
		ID:          event.ID,
		PK:          event.ThreadID,
		Kind:        kindRunEvent,
		ThreadID:    event.ThreadID,
		SessionID:   event.SessionID,
		EventType:   event.Type,
		Payload:     event.Payload,
		CreatedAt:   event.CreatedAt,
		CreatedAtMs: event.CreatedAt.UnixMilli(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(event.ThreadID)
	if _, err := s.container.CreateItem(ctx, pk, data, nil); err != nil {
		return fmt.Errorf("store run event: %w", err)
	}
	return nil
}

func (s *CosmosStore) ListRunEvents(ctx context.Context, threadID string, limit int) ([]*RunEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	pk := azcosmos.NewPartitionKeyString(threadID)
	pager := s.container.NewQueryItemsPager(
		`SELECT * FROM c WHERE c.kind = @kind ORDER BY c.createdAtMs DESC OFFSET 0 LIMIT @limit`,
		pk,
		&azcosmos.QueryOptions{QueryParameters: []azcosmos.QueryParameter{
			{Name: "@kind", Value: kindRunEvent},
			{Name: "@limit", Value: limit},
		}},
	)

	events := []*RunEvent{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list run events: %w", err)
		}
		for _, raw := range resp.Items {
			var doc cosmosRunEvent
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode run event: %w", err)
			}
			events = append(events, doc.toRunEvent())
		}
	}
	return events, nil
}

// Ping reads the container properties to verify connectivity and access.
func (s *CosmosStore) Ping(ctx context.Context) error {
	if _, err := s.container.Read(ctx, nil); err != nil {
		return fmt.Errorf("read container: %w", err)
	}
	return nil
}

// Close is a no-op; the Cosmos client holds no persistent connections that
// need explicit shutdown.
func (s *CosmosStore) Close() error { return nil }

func (s *CosmosStore) readThreadDoc(ctx context.Context, threadID string) (*cosmosThread, azcore.ETag, error) {
	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	resp, err := s.container.ReadItem(ctx, pk, threadID, nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return nil, "", ErrThreadNotFound
		}
		return nil, "", fmt.Errorf("read thread: %w", err)
	}

	var doc cosmosThread
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, "", fmt.Errorf("decode thread: %w", err)
	}
	return &doc, resp.ETag, nil
}

func (s *CosmosStore) replaceThreadDoc(ctx context.Context, doc *cosmosThread, etag azcore.ETag) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(threadsPartition)
	opts := &azcosmos.ItemOptions{IfMatchEtag: &etag}
	if _, err := s.container.ReplaceItem(ctx, pk, doc.ID, data, opts); err != nil {
		if isCosmosNotFound(err) {
			return ErrThreadNotFound
		}
		return fmt.Errorf("update thread: %w", err)
	}
	return nil
}

func isCosmosNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func (d *cosmosThread) toThread() *Thread {
	return &Thread{
		ID:           d.ID,
		Title:        d.Title,
		AgentName:    d.AgentName,
		Variant:      d.Variant,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		MessageCount: d.MessageCount,
	}
}

func (d *cosmosMessage) toMessage() *Message {
	return &Message{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		Seq:       d.Seq,
		Role:      d.Role,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
	}
}

func (d *cosmosRunEvent) toRunEvent() *RunEvent {
	return &RunEvent{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		SessionID: d.SessionID,
		Type:      d.EventType,
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
	}
}
