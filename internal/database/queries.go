package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	accountColumns = "id, username, photo, password_hash, created_at, updated_at"
	messageColumns = "id, seq_id, conversation_id, user_id, sender_username, sender_photo, content, reactions, created_at, updated_at"
	addParticipant = "INSERT INTO participants (conversation_id, account_id, username, photo, created_at) " +
		"SELECT $1, a.id, a.username, a.photo, $3 FROM accounts a WHERE a.id = $2 " +
		"RETURNING id, conversation_id, account_id, username, photo, created_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Photo,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func scanMessage(row scanner) (Message, error) {
	var (
		msg       Message
		reactions []byte
	)
	err := row.Scan(
		&msg.Id,
		&msg.SeqId,
		&msg.ConversationId,
		&msg.UserId,
		&msg.SenderUsername,
		&msg.SenderPhoto,
		&msg.Content,
		&reactions,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return msg, err
	}

	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return msg, fmt.Errorf("decode reactions: %w", err)
		}
	}

	return msg, nil
}

func (db *PgGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, photo, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+accountColumns,
		params.Username,
		params.Photo,
		params.PasswordHash,
		now,
		now,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

// UpdateAccountPhoto sets the account's photo together with the copies
// kept on its participant rows and sent messages.
func (db *PgGoChatRepository) UpdateAccountPhoto(ctx context.Context, accountId int, photo string) (u User, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return u, classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"UPDATE accounts SET photo = $2, updated_at = $3 WHERE id = $1 RETURNING "+accountColumns,
		accountId,
		photo,
		time.Now().UTC(),
	)
	u, err = scanAccount(row)
	if err != nil {
		return u, classify(err)
	}

	if _, err = tx.ExecContext(ctx, "UPDATE participants SET photo = $2 WHERE account_id = $1", accountId, photo); err != nil {
		return u, classify(err)
	}

	if _, err = tx.ExecContext(ctx, "UPDATE messages SET sender_photo = $2 WHERE user_id = $1", accountId, photo); err != nil {
		return u, classify(err)
	}

	err = classify(tx.Commit())
	return u, err
}

func (db *PgGoChatRepository) GetAccountById(ctx context.Context, accountId int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username = $1 LIMIT 1",
		username,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoChatRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, classify(rows.Err())
}

func (db *PgGoChatRepository) GetAccountsByIds(ctx context.Context, accountIds []int) ([]User, error) {
	ids := make([]int64, len(accountIds))
	for i, id := range accountIds {
		ids[i] = int64(id)
	}

	return db.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ANY($1)",
		pq.Array(ids),
	)
}

func (db *PgGoChatRepository) ListAccounts(ctx context.Context) ([]User, error) {
	return db.queryAccounts(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY username")
}

func (db *PgGoChatRepository) ListFriendIds(ctx context.Context, accountId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT friend_id FROM friendships WHERE account_id = $1 ORDER BY created_at",
		accountId,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, classify(rows.Err())
}

func (db *PgGoChatRepository) CreateFriendRequest(ctx context.Context, fromId, toId int) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO friend_requests (from_id, to_id, accepted, created_at, updated_at) "+
			"VALUES ($1, $2, FALSE, $3, $3)",
		fromId,
		toId,
		now,
	)

	return classify(err)
}

// AcceptFriendRequest marks the pending request from fromId to toId as
// accepted and records the friendship in both directions.
func (db *PgGoChatRepository) AcceptFriendRequest(ctx context.Context, fromId, toId int) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE friend_requests SET accepted = TRUE, updated_at = $3 "+
			"WHERE from_id = $1 AND to_id = $2 AND accepted = FALSE",
		fromId,
		toId,
		now,
	)
	if err != nil {
		return classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO friendships (account_id, friend_id, created_at) VALUES ($1, $2, $3), ($2, $1, $3) "+
			"ON CONFLICT DO NOTHING",
		fromId,
		toId,
		now,
	)
	if err != nil {
		return classify(err)
	}

	return classify(tx.Commit())
}

// CreateConversation inserts the conversation and its participants in one
// transaction. The owner is always the first participant and must not be
// repeated in params.ParticipantIds.
func (db *PgGoChatRepository) CreateConversation(ctx context.Context, params CreateConversationParams) (conv *Conversation, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	conv = &Conversation{Participants: make([]Participant, 0, len(params.ParticipantIds)+1)}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO conversations (id, name, owner_id, seq_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 0, $4, $4) RETURNING id, name, owner_id, seq_id, created_at, updated_at",
		params.Id,
		params.Name,
		params.OwnerId,
		now,
	).Scan(&conv.Id, &conv.Name, &conv.OwnerId, &conv.SeqId, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}

	members := append([]int{params.OwnerId}, params.ParticipantIds...)
	for _, accountId := range members {
		var p Participant
		err = tx.QueryRowContext(ctx, addParticipant, conv.Id, accountId, now).Scan(
			&p.Id,
			&p.ConversationId,
			&p.AccountId,
			&p.Username,
			&p.Photo,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, classify(err)
		}
		conv.Participants = append(conv.Participants, p)
	}

	if err = tx.Commit(); err != nil {
		return nil, classify(err)
	}

	return conv, nil
}

func (db *PgGoChatRepository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT
				c.id,
				c.name,
				COALESCE(c.owner_id, 0),
				c.seq_id,
				c.created_at,
				c.updated_at,
				p.id,
				p.account_id,
				p.username,
				p.photo,
				p.created_at
		FROM conversations c
		LEFT JOIN participants p ON c.id = p.conversation_id
		WHERE c.id = $1
		ORDER BY p.id;
`

	rows, err := db.conn.QueryContext(ctx, query, id)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var conv *Conversation
	for rows.Next() {
		var (
			c             Conversation
			participantId sql.NullInt64
			accountId     sql.NullInt64
			username      sql.NullString
			photo         sql.NullString
			joinedAt      sql.NullTime
		)

		err := rows.Scan(
			&c.Id,
			&c.Name,
			&c.OwnerId,
			&c.SeqId,
			&c.CreatedAt,
			&c.UpdatedAt,
			&participantId,
			&accountId,
			&username,
			&photo,
			&joinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if conv == nil {
			c.Participants = make([]Participant, 0)
			conv = &c
		}

		if accountId.Valid {
			conv.Participants = append(conv.Participants, Participant{
				Id:             int(participantId.Int64),
				ConversationId: conv.Id,
				AccountId:      int(accountId.Int64),
				Username:       username.String,
				Photo:          photo.String,
				CreatedAt:      joinedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	if conv == nil {
		return nil, sql.ErrNoRows
	}

	return conv, nil
}

// ListConversations returns every conversation accountId participates in,
// most recently active first, with full rosters.
func (db *PgGoChatRepository) ListConversations(ctx context.Context, accountId int) ([]Conversation, error) {
	query := `
		SELECT
				c.id,
				c.name,
				COALESCE(c.owner_id, 0),
				c.seq_id,
				c.created_at,
				c.updated_at,
				p.id,
				p.account_id,
				p.username,
				p.photo,
				p.created_at
		FROM conversations c
		JOIN participants p ON c.id = p.conversation_id
		WHERE c.id IN (SELECT conversation_id FROM participants WHERE account_id = $1)
		ORDER BY c.updated_at DESC, c.id, p.id;
`

	rows, err := db.conn.QueryContext(ctx, query, accountId)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	convs := make([]Conversation, 0)
	for rows.Next() {
		var (
			c Conversation
			p Participant
		)

		err := rows.Scan(
			&c.Id,
			&c.Name,
			&c.OwnerId,
			&c.SeqId,
			&c.CreatedAt,
			&c.UpdatedAt,
			&p.Id,
			&p.AccountId,
			&p.Username,
			&p.Photo,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p.ConversationId = c.Id

		if n := len(convs); n == 0 || convs[n-1].Id != c.Id {
			convs = append(convs, c)
		}
		last := &convs[len(convs)-1]
		last.Participants = append(last.Participants, p)
	}

	return convs, classify(rows.Err())
}

func (db *PgGoChatRepository) AddParticipant(ctx context.Context, conversationId string, accountId int) (Participant, error) {
	var p Participant
	err := db.conn.QueryRowContext(ctx, addParticipant, conversationId, accountId, time.Now().UTC()).Scan(
		&p.Id,
		&p.ConversationId,
		&p.AccountId,
		&p.Username,
		&p.Photo,
		&p.CreatedAt,
	)

	return p, classify(err)
}

func (db *PgGoChatRepository) DeleteParticipant(ctx context.Context, conversationId string, accountId int) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM participants WHERE conversation_id = $1 AND account_id = $2",
		conversationId,
		accountId,
	)
	if err != nil {
		return classify(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DeleteConversation removes the conversation with its memberships and
// messages.
func (db *PgGoChatRepository) DeleteConversation(ctx context.Context, id string) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM participants WHERE conversation_id = $1", id); err != nil {
		return classify(err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = $1", id); err != nil {
		return classify(err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		err = sql.ErrNoRows
		return err
	}

	return classify(tx.Commit())
}

// CreateMessage stores the message and advances the conversation's
// sequence in one transaction. Re-running it with the same message is a
// no-op.
func (db *PgGoChatRepository) CreateMessage(ctx context.Context, msg Message) (err error) {
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return fmt.Errorf("encode reactions: %w", err)
	}
	if msg.Reactions == nil {
		reactions = []byte("[]")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET seq_id = $1, updated_at = $2 WHERE id = $3 AND seq_id <= $1",
		msg.SeqId,
		msg.CreatedAt,
		msg.ConversationId,
	)
	if err != nil {
		return classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		// Either the conversation is gone or storage already holds a
		// later sequence number than the caller's.
		var exists bool
		err = tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)", msg.ConversationId).Scan(&exists)
		if err != nil {
			return classify(err)
		}
		if exists {
			err = ErrConflict
		} else {
			err = sql.ErrNoRows
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) ON CONFLICT (id) DO NOTHING",
		msg.Id,
		msg.SeqId,
		msg.ConversationId,
		msg.UserId,
		msg.SenderUsername,
		msg.SenderPhoto,
		msg.Content,
		string(reactions),
		msg.CreatedAt,
	)
	if err != nil {
		return classify(err)
	}

	return classify(tx.Commit())
}

func (db *PgGoChatRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	msg, err := scanMessage(row)
	return msg, classify(err)
}

// GetMessages returns up to limit messages older than the before sequence
// id (all messages when before is 0), in send order.
func (db *PgGoChatRepository) GetMessages(ctx context.Context, conversationId string, before int64, limit int) ([]Message, error) {
	var upper int64 = 1<<63 - 1
	if before > 0 {
		upper = before - 1
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM ("+
			"SELECT "+messageColumns+" FROM messages WHERE conversation_id = $1 AND seq_id <= $2 "+
			"ORDER BY seq_id DESC LIMIT $3"+
			") page ORDER BY created_at, seq_id",
		conversationId,
		upper,
		limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, classify(rows.Err())
}

func (db *PgGoChatRepository) UpdateMessageReactions(ctx context.Context, id string, reactions []Reaction) error {
	if reactions == nil {
		reactions = []Reaction{}
	}

	b, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("encode reactions: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET reactions = $2, updated_at = $3 WHERE id = $1",
		id,
		string(b),
		time.Now().UTC(),
	)
	if err != nil {
		return classify(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgGoChatRepository) CreateNotification(ctx context.Context, n Notification) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO notifications (id, account_id, type, content, read, conversation_id, message_id, created_at) "+
			"VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7) ON CONFLICT (id) DO NOTHING",
		n.Id,
		n.AccountId,
		n.Type,
		n.Content,
		n.ConversationId,
		n.MessageId,
		n.CreatedAt,
	)

	return classify(err)
}

// ListNotifications returns the account's notifications, newest last.
func (db *PgGoChatRepository) ListNotifications(ctx context.Context, accountId int) ([]Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, account_id, type, content, read, conversation_id, message_id, created_at "+
			"FROM notifications WHERE account_id = $1 ORDER BY created_at, seq",
		accountId,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		err := rows.Scan(
			&n.Id,
			&n.AccountId,
			&n.Type,
			&n.Content,
			&n.Read,
			&n.ConversationId,
			&n.MessageId,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, classify(rows.Err())
}

func (db *PgGoChatRepository) CountUnreadNotifications(ctx context.Context, accountId int) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND read = FALSE",
		accountId,
	).Scan(&count)

	return count, classify(err)
}

// MarkNotificationsRead flags every notification stored for the account
// as read. Notifications inserted after the statement's snapshot stay
// unread.
func (db *PgGoChatRepository) MarkNotificationsRead(ctx context.Context, accountId int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE account_id = $1 AND read = FALSE",
		accountId,
	)
	if err != nil {
		return 0, classify(err)
	}

	n, err := res.RowsAffected()
	return n, classify(err)
}
