package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// noticeRow is the notices table.
type noticeRow struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	Title     string    `gorm:"not null"`
	Body      string    `gorm:"type:text"`
	Category  string    `gorm:"size:64"`
	Author    string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index"`
}

func (noticeRow) TableName() string { return "notices" }

// messageRow is the messages table. Recipients is a JSON array of user IDs
// or "ALL".
type messageRow struct {
	ID         string    `gorm:"primaryKey;type:uuid"`
	SenderID   string    `gorm:"index;not null"`
	SenderName string    `gorm:"size:255"`
	Recipients []string  `gorm:"type:jsonb;serializer:json;not null"`
	Subject    string    `gorm:"size:255"`
	Body       string    `gorm:"type:text"`
	Read       bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"index"`
}

func (messageRow) TableName() string { return "messages" }

// Mailbox stores notices and messages through gorm.
type Mailbox struct {
	db *gorm.DB
}

// OpenMailbox opens gorm on top of pool so both share one set of
// connections. When migrate is set the notices and messages tables are
// created or updated.
func OpenMailbox(pool *pgxpool.Pool, migrate bool) (*Mailbox, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	if migrate {
		if err := db.AutoMigrate(&noticeRow{}, &messageRow{}); err != nil {
			return nil, fmt.Errorf("migrate mailbox: %w", err)
		}
	}
	return &Mailbox{db: db}, nil
}

// Close releases the mailbox's connections.
func (m *Mailbox) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListNotices returns notices newest first.
func (m *Mailbox) ListNotices(ctx context.Context) ([]core.Notice, error) {
	var rows []noticeRow
	if err := m.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	out := make([]core.Notice, 0, len(rows))
	for _, r := range rows {
		out = append(out, noticeFromRow(r))
	}
	return out, nil
}

// PublishNotice stores n with a fresh ID and timestamp.
func (m *Mailbox) PublishNotice(ctx context.Context, n core.Notice) (core.Notice, error) {
	row := noticeRow{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(n.Title),
		Body:      n.Body,
		Category:  n.Category,
		Author:    n.Author,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.Notice{}, fmt.Errorf("publish notice: %w", err)
	}
	return noticeFromRow(row), nil
}

// ListMessages returns the messages addressed to userID, broadcast to
// everyone, or sent by userID, newest first.
func (m *Mailbox) ListMessages(ctx context.Context, userID string) ([]core.Message, error) {
	broadcast, _ := json.Marshal([]string{core.BroadcastRecipient})
	direct, _ := json.Marshal([]string{userID})

	var rows []messageRow
	err := m.db.WithContext(ctx).
		Where("recipients @> ?::jsonb OR recipients @> ?::jsonb OR sender_id = ?", string(broadcast), string(direct), userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]core.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, messageFromRow(r))
	}
	return out, nil
}

// SendMessage stores msg with a fresh ID and timestamp.
func (m *Mailbox) SendMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	row := messageRow{
		ID:         uuid.NewString(),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Recipients: msg.Recipients,
		Subject:    msg.Subject,
		Body:       msg.Body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.Message{}, fmt.Errorf("send message: %w", err)
	}
	return messageFromRow(row), nil
}

// MarkRead flags a message read on behalf of userID, who must be one of
// its addressees.
func (m *Mailbox) MarkRead(ctx context.Context, id, userID string) error {
	var row messageRow
	err := m.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("mark read %s: %w", id, core.ErrMessageNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	if !messageFromRow(row).AddressedTo(userID) {
		return fmt.Errorf("mark read %s: %w", id, core.ErrForbidden)
	}
	if err := m.db.WithContext(ctx).Model(&row).Update("read", true).Error; err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

func noticeFromRow(r noticeRow) core.Notice {
	return core.Notice{
		ID:        r.ID,
		Title:     r.Title,
		Body:      r.Body,
		Category:  r.Category,
		Author:    r.Author,
		CreatedAt: r.CreatedAt,
	}
}

func messageFromRow(r messageRow) core.Message {
	recipients := r.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return core.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Recipients: recipients,
		Subject:    r.Subject,
		Body:       r.Body,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt,
	}
}
