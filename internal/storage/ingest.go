package storage

import (
	"context"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FlushPosts persists a micro-batch of classified posts and their language
// associations in one transaction. A duplicate create re-stamps IndexedAt
// and fills in the fields a placeholder row was created without.
func (s *Store) FlushPosts(ctx context.Context, events []domain.PostEvent) error {
	if len(events) == 0 {
		return nil
	}
	// A replayed firehose window can put the same URI into one buffer twice;
	// a multi-row upsert must not touch the same row twice, so keep the last
	// event per URI.
	events = dedupePostEvents(events)
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dids := make([]string, 0, len(events))
		codes := make([]string, 0, len(events))
		for _, ev := range events {
			dids = append(dids, ev.AuthorDID)
			codes = append(codes, ev.Langs...)
		}

		userIDs, err := ensureUsers(tx, dids, now)
		if err != nil {
			return err
		}
		langIDs, err := ensureLanguages(tx, codes)
		if err != nil {
			return err
		}

		posts := make([]domain.Post, 0, len(events))
		for _, ev := range events {
			authorID := userIDs[ev.AuthorDID]
			posts = append(posts, domain.Post{
				AuthorID:    &authorID,
				URI:         ev.URI,
				CID:         ev.CID,
				ReplyParent: ev.ReplyParent,
				ReplyRoot:   ev.ReplyRoot,
				IndexedAt:   now,
				CreatedAt:   ev.CreatedAt,
			})
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "uri"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"author_id", "cid", "reply_parent", "reply_root", "created_at", "indexed_at",
			}),
		}).Create(&posts).Error
		if err != nil {
			return err
		}

		postIDs, err := postIDsByURI(tx, uris(events))
		if err != nil {
			return err
		}

		var assocs []postLanguage
		for _, ev := range events {
			postID, ok := postIDs[ev.URI]
			if !ok {
				continue
			}
			for _, code := range ev.Langs {
				assocs = append(assocs, postLanguage{
					PostID:     postID,
					LanguageID: langIDs[code],
				})
			}
		}
		if len(assocs) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&assocs).Error
	})
}

// DeletePosts removes posts and their dependent rows by URI set.
func (s *Store) DeletePosts(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&domain.Post{}).Select("id").Where("uri IN ?", uris)
		if err := tx.Where("post_id IN (?)", ids).Delete(&postLanguage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)", ids).Delete(&domain.Interaction{}).Error; err != nil {
			return err
		}
		return tx.Where("uri IN ?", uris).Delete(&domain.Post{}).Error
	})
}

// CreateInteractions persists likes/reposts, creating a placeholder Post for
// any subject that has not been indexed yet. The subject's IndexedAt is
// re-stamped either way.
func (s *Store) CreateInteractions(ctx context.Context, events []domain.InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dids := make([]string, 0, len(events))
		for _, ev := range events {
			dids = append(dids, ev.AuthorDID)
		}
		userIDs, err := ensureUsers(tx, dids, now)
		if err != nil {
			return err
		}

		placeholders := make([]domain.Post, 0, len(events))
		seen := make(map[string]bool, len(events))
		subjectURIs := make([]string, 0, len(events))
		for _, ev := range events {
			subjectURIs = append(subjectURIs, ev.SubjectURI)
			if seen[ev.SubjectURI] {
				continue
			}
			seen[ev.SubjectURI] = true
			placeholders = append(placeholders, domain.Post{
				URI:       ev.SubjectURI,
				CID:       ev.SubjectCID,
				IndexedAt: now,
			})
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uri"}},
			DoUpdates: clause.AssignmentColumns([]string{"indexed_at"}),
		}).Create(&placeholders).Error
		if err != nil {
			return err
		}

		postIDs, err := postIDsByURI(tx, subjectURIs)
		if err != nil {
			return err
		}

		interactions := make([]domain.Interaction, 0, len(events))
		for _, ev := range events {
			interactions = append(interactions, domain.Interaction{
				URI:       ev.URI,
				CID:       ev.CID,
				AuthorID:  userIDs[ev.AuthorDID],
				PostID:    postIDs[ev.SubjectURI],
				Type:      ev.Type,
				IndexedAt: now,
				CreatedAt: ev.CreatedAt,
			})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&interactions).Error
	})
}

// DeleteInteractions removes interactions by URI set.
func (s *Store) DeleteInteractions(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("uri IN ?", uris).Delete(&domain.Interaction{}).Error
}

// EnsureUsers upserts bare User rows for the given DIDs.
func (s *Store) EnsureUsers(ctx context.Context, dids []string) error {
	if len(dids) == 0 {
		return nil
	}
	_, err := ensureUsers(s.db.WithContext(ctx), dids, time.Now().UTC())
	return err
}

func ensureUsers(tx *gorm.DB, dids []string, now time.Time) (map[string]uint, error) {
	unique := dedupe(dids)
	users := make([]domain.User, 0, len(unique))
	for _, did := range unique {
		users = append(users, domain.User{DID: did, IndexedAt: now})
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error
	if err != nil {
		return nil, err
	}

	var rows []domain.User
	if err := tx.Where("did IN ?", unique).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]uint, len(rows))
	for _, u := range rows {
		ids[u.DID] = u.ID
	}
	return ids, nil
}

func ensureLanguages(tx *gorm.DB, codes []string) (map[string]uint, error) {
	unique := dedupe(codes)
	if len(unique) == 0 {
		return map[string]uint{}, nil
	}
	langs := make([]domain.Language, 0, len(unique))
	for _, code := range unique {
		langs = append(langs, domain.Language{Code: code})
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&langs).Error
	if err != nil {
		return nil, err
	}

	var rows []domain.Language
	if err := tx.Where("code IN ?", unique).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]uint, len(rows))
	for _, l := range rows {
		ids[l.Code] = l.ID
	}
	return ids, nil
}

func postIDsByURI(tx *gorm.DB, uris []string) (map[string]uint, error) {
	var rows []domain.Post
	if err := tx.Select("id", "uri").Where("uri IN ?", dedupe(uris)).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]uint, len(rows))
	for _, p := range rows {
		ids[p.URI] = p.ID
	}
	return ids, nil
}

func dedupePostEvents(events []domain.PostEvent) []domain.PostEvent {
	index := make(map[string]int, len(events))
	out := make([]domain.PostEvent, 0, len(events))
	for _, ev := range events {
		if i, ok := index[ev.URI]; ok {
			out[i] = ev
			continue
		}
		index[ev.URI] = len(out)
		out = append(out, ev)
	}
	return out
}

func uris(events []domain.PostEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.URI)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
