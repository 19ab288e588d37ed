package service

import (
	"context"
	"encoding/json"
	"fmt"
	"quiz_engine_backend/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore 管理在答会话的易失状态：互斥标记、开考时刻的测验快照、答案草稿。
// 评分落库前这些数据都不进数据库；标记 TTL 兜底清理被放弃的会话。
type SessionStore interface {
	AcquireActive(ctx context.Context, quizID, learnerID, attemptID uint, ttl time.Duration) (bool, error)
	ReleaseActive(ctx context.Context, quizID, learnerID uint) error
	SaveSnapshot(ctx context.Context, attemptID uint, quiz *model.Quiz, ttl time.Duration) error
	GetSnapshot(ctx context.Context, attemptID uint) (*model.Quiz, error)
	SaveDraft(ctx context.Context, attemptID, questionID uint, value model.AnswerValue) error
	GetDrafts(ctx context.Context, attemptID uint) (map[uint]model.AnswerValue, error)
	ClearSession(ctx context.Context, attemptID uint) error
}

type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func activeKey(quizID, learnerID uint) string {
	return fmt.Sprintf("attempt:active:%d:%d", quizID, learnerID)
}

func snapshotKey(attemptID uint) string {
	return fmt.Sprintf("attempt:snapshot:%d", attemptID)
}

func draftKey(attemptID uint) string {
	return fmt.Sprintf("attempt:answers:%d", attemptID)
}

// AcquireActive SETNX 获取在答标记，同一 (quiz, learner) 最多一个进行中的会话
func (s *RedisSessionStore) AcquireActive(ctx context.Context, quizID, learnerID, attemptID uint, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, activeKey(quizID, learnerID), attemptID, ttl).Result()
}

func (s *RedisSessionStore) ReleaseActive(ctx context.Context, quizID, learnerID uint) error {
	return s.rdb.Del(ctx, activeKey(quizID, learnerID)).Err()
}

// SaveSnapshot 保存开考时刻的测验定义，评分始终使用该快照而非目录的当前版本
func (s *RedisSessionStore) SaveSnapshot(ctx context.Context, attemptID uint, quiz *model.Quiz, ttl time.Duration) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, snapshotKey(attemptID), data, ttl).Err()
}

func (s *RedisSessionStore) GetSnapshot(ctx context.Context, attemptID uint) (*model.Quiz, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(attemptID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var quiz model.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *RedisSessionStore) SaveDraft(ctx context.Context, attemptID, questionID uint, value model.AnswerValue) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, draftKey(attemptID), fmt.Sprintf("%d", questionID), data).Err()
}

func (s *RedisSessionStore) GetDrafts(ctx context.Context, attemptID uint) (map[uint]model.AnswerValue, error) {
	fields, err := s.rdb.HGetAll(ctx, draftKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}

	drafts := make(map[uint]model.AnswerValue, len(fields))
	for field, raw := range fields {
		var qid uint
		if _, err := fmt.Sscanf(field, "%d", &qid); err != nil {
			continue
		}
		var v model.AnswerValue
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		drafts[qid] = v
	}
	return drafts, nil
}

func (s *RedisSessionStore) ClearSession(ctx context.Context, attemptID uint) error {
	return s.rdb.Del(ctx, snapshotKey(attemptID), draftKey(attemptID)).Err()
}
