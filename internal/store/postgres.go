package store

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type conversationRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Title     string         `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (conversationRecord) TableName() string { return "conversations" }

type messageRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conversation_position,priority:1"`
	Role           string         `gorm:"not null"`
	Content        string         `gorm:"not null"`
	Position       int            `gorm:"not null;index:idx_messages_conversation_position,priority:2"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (messageRecord) TableName() string { return "messages" }

// Postgres is the gorm-backed Gateway.
type Postgres struct {
	db  *gorm.DB
	now func() time.Time
}

func gormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

// NewPostgres connects to dsn and migrates the schema.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger(),
	})
	if err != nil {
		return nil, persistErr("open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, persistErr("open", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewPostgresFromDB(db)
}

// NewPostgresFromDB wraps an open gorm handle.
func NewPostgresFromDB(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&conversationRecord{}, &messageRecord{}); err != nil {
		return nil, persistErr("migrate", err)
	}
	return &Postgres{db: db, now: time.Now}, nil
}

// SaveConversation inserts the header and all messages in one transaction.
func (p *Postgres) SaveConversation(ctx context.Context, conv NewConversation) (string, error) {
	if len(conv.Messages) == 0 {
		return "", ErrNoMessages
	}

	header, messages, err := buildRecords(conv, p.now())
	if err != nil {
		return "", err
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(messages, 100).Error
	})
	if err != nil {
		return "", persistErr("save conversation", err)
	}

	return header.ID.String(), nil
}

func buildRecords(conv NewConversation, now time.Time) (conversationRecord, []messageRecord, error) {
	meta, err := jsonColumn(conv.Metadata)
	if err != nil {
		return conversationRecord{}, nil, err
	}
	header := conversationRecord{
		ID:        uuid.Must(uuid.NewV7()),
		Title:     conv.Title,
		Metadata:  meta,
		CreatedAt: now,
	}

	messages := make([]messageRecord, len(conv.Messages))
	for i, m := range conv.Messages {
		meta, err := jsonColumn(m.Metadata)
		if err != nil {
			return conversationRecord{}, nil, err
		}
		messages[i] = messageRecord{
			ID:             uuid.Must(uuid.NewV7()),
			ConversationID: header.ID,
			Role:           m.Role,
			Content:        m.Content,
			Position:       i,
			Metadata:       meta,
			CreatedAt:      messageTime(m, now),
		}
	}
	return header, messages, nil
}

func jsonColumn(v map[string]any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, persistErr("encode metadata", err)
	}
	return datatypes.JSON(b), nil
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return persistErr("ping", err)
	}
	return persistErr("ping", sqlDB.PingContext(ctx))
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
