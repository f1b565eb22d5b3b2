package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"

	"mak3-crm/internal/models"
)

const contactsIndex = "contacts"

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
}

// ElasticIndexer keeps the contacts index in sync with the database.
type ElasticIndexer struct {
	es *elasticsearch.Client
}

func NewElasticIndexer(cfg ElasticConfig) (*ElasticIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticIndexer{es: es}, nil
}

// EnsureIndex creates the contacts index with its mapping if it is missing.
func (i *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{contactsIndex}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"firstName": map[string]any{"type": "text"},
				"lastName":  map[string]any{"type": "text"},
				"phone":     map[string]any{"type": "keyword"},
				"email":     map[string]any{"type": "keyword"},
				"notes":     map[string]any{"type": "text"},
				"isLead":    map[string]any{"type": "boolean"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	createRes, err := i.es.Indices.Create(
		contactsIndex,
		i.es.Indices.Create.WithBody(bytes.NewReader(body)),
		i.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}
	return nil
}

func (i *ElasticIndexer) IndexContact(ctx context.Context, contact *models.Contact) error {
	doc := map[string]any{
		"firstName":    contact.FirstName,
		"lastName":     contact.LastName,
		"middleName":   contact.MiddleName,
		"phone":        contact.Phone,
		"notes":        contact.Notes,
		"isLead":       contact.IsLead,
		"source":       contact.Source,
		"statusClient": contact.StatusClient,
	}
	if contact.Email != nil {
		doc["email"] = *contact.Email
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := i.es.Index(
		contactsIndex,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(strconv.FormatUint(uint64(contact.ID), 10)),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index contact %d: %w", contact.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index contact %d: %s", contact.ID, res.String())
	}
	return nil
}

// SearchContacts runs a fuzzy multi_match over the indexed fields and returns
// the matched contact ids in relevance order.
func (i *ElasticIndexer) SearchContacts(ctx context.Context, query string, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 50
	}
	q := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"firstName^2", "lastName^2", "middleName", "phone", "email", "notes"},
				"fuzziness": "AUTO",
			},
		},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(contactsIndex),
		i.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uint, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (i *ElasticIndexer) DeleteContact(ctx context.Context, id uint) error {
	res, err := i.es.Delete(
		contactsIndex,
		strconv.FormatUint(uint64(id), 10),
		i.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact %d from index: %w", id, err)
	}
	defer res.Body.Close()
	// отсутствие документа в индексе — не ошибка
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete contact %d from index: %s", id, res.String())
	}
	return nil
}
