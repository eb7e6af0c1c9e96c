// Package levelstore 把大资金价位持久化到 Badger，
// 重启后可以恢复仍然有效的防守价位。
package levelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/flowsense/internal/domain"
)

const keyPrefix = "bigfish/"

// Store 大资金价位档案（Badger KV 包装）
type Store struct {
	db *badger.DB
}

// Open 打开档案库，path 为空返回错误
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("levelstore: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func levelKey(price int64) []byte {
	return []byte(keyPrefix + strconv.FormatInt(price, 10))
}

// Put 写入（或覆盖）一个大资金价位
func (s *Store) Put(lv *domain.BigFishLevel) error {
	if s == nil || s.db == nil {
		return errors.New("levelstore: not opened")
	}
	if lv == nil {
		return errors.New("levelstore: nil level")
	}
	v, err := json.Marshal(lv)
	if err != nil {
		return fmt.Errorf("levelstore: marshal price=%d: %w", lv.Price, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(levelKey(lv.Price), v)
	})
}

// Delete 删除指定价位
func (s *Store) Delete(price int64) error {
	if s == nil || s.db == nil {
		return errors.New("levelstore: not opened")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(levelKey(price))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// LoadActive 读出所有仍在有效期内的价位，过期的顺手清掉
func (s *Store) LoadActive(maxAge time.Duration, now time.Time) ([]*domain.BigFishLevel, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("levelstore: not opened")
	}

	var out []*domain.BigFishLevel
	var stale []int64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var lv domain.BigFishLevel
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &lv)
			})
			if err != nil {
				// 损坏的条目跳过，由清理删除
				continue
			}
			if !lv.Active || now.Sub(lv.FirstSeen) > maxAge {
				stale = append(stale, lv.Price)
				continue
			}
			out = append(out, &lv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, price := range stale {
		_ = s.Delete(price)
	}
	return out, nil
}
