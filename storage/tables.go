package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskfolio-api/domain"
)

// Tables persists collections in an Azure Table, one entity per user and
// kind: PartitionKey is the user id, RowKey is the kind, and the serialized
// collection lives in a Payload column. The optional reminder queue receives
// rendered reminder messages.
type Tables struct {
	table         *aztables.Client
	reminderQueue *azqueue.QueueClient
}

// NewTables creates a Tables adapter from the given connection string. The
// reminder queue name may be empty, in which case EnqueueReminder is a no-op
// error.
func NewTables(connStr, tableName, reminderQueue string) (*Tables, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	t := &Tables{table: svc.NewClient(tableName)}
	if reminderQueue != "" {
		queueClientOptions := azqueue.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries:    5,
					TryTimeout:    time.Minute * 5,
					RetryDelay:    time.Second * 1,
					MaxRetryDelay: time.Second * 60,
					StatusCodes:   []int{408, 429, 500, 502, 503, 504},
				},
			},
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, reminderQueue, &queueClientOptions)
		if err != nil {
			return nil, err
		}
		t.reminderQueue = q
	}
	return t, nil
}

type collectionEntity struct {
	aztables.Entity
	Payload string `json:"Payload"`
}

func (t *Tables) load(ctx context.Context, userID string, kind Kind, out any) error {
	ent, err := t.table.GetEntity(ctx, userID, string(kind), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return ErrNotFound
		}
		return err
	}
	var rec collectionEntity
	if err := json.Unmarshal(ent.Value, &rec); err != nil {
		return err
	}
	return json.Unmarshal([]byte(rec.Payload), out)
}

func (t *Tables) save(ctx context.Context, userID string, kind Kind, collection any) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(collectionEntity{
		Entity:  aztables.Entity{PartitionKey: userID, RowKey: string(kind)},
		Payload: string(data),
	})
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, payload, nil)
	return err
}

func (t *Tables) LoadTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := t.load(ctx, userID, KindTasks, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (t *Tables) SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error {
	return t.save(ctx, userID, KindTasks, tasks)
}

func (t *Tables) LoadProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	var projects []domain.Project
	if err := t.load(ctx, userID, KindProjects, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (t *Tables) SaveProjects(ctx context.Context, userID string, projects []domain.Project) error {
	return t.save(ctx, userID, KindProjects, projects)
}

// EnqueueReminder sends one rendered reminder message to the reminder queue.
func (t *Tables) EnqueueReminder(ctx context.Context, payload []byte) error {
	if t.reminderQueue == nil {
		return fmt.Errorf("reminder queue not configured")
	}
	_, err := t.reminderQueue.EnqueueMessage(ctx, string(payload), nil)
	return err
}
