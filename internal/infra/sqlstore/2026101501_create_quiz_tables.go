package sqlstore

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				for _, model := range []interface{}{
					(*questionRow)(nil),
					(*testRow)(nil),
					(*linkRow)(nil),
					(*attemptRow)(nil),
					(*answerRow)(nil),
				} {
					if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
						return err
					}
				}

				if _, err := tx.NewCreateIndex().Model((*linkRow)(nil)).IfNotExists().
					Index("test_questions_test_question_uidx").Unique().
					Column("test_id", "question_id").Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateIndex().Model((*linkRow)(nil)).IfNotExists().
					Index("test_questions_question_idx").
					Column("question_id").Exec(ctx); err != nil {
					return err
				}
				// one open attempt per (test, user)
				if _, err := tx.NewCreateIndex().Model((*attemptRow)(nil)).IfNotExists().
					Index("attempts_open_uidx").Unique().
					Column("test_id", "user_id").
					Where("finished_at IS NULL").Exec(ctx); err != nil {
					return err
				}
				_, err := tx.NewCreateIndex().Model((*answerRow)(nil)).IfNotExists().
					Index("answers_attempt_question_uidx").Unique().
					Column("attempt_id", "question_id").Exec(ctx)
				return err
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range []interface{}{
				(*answerRow)(nil),
				(*attemptRow)(nil),
				(*linkRow)(nil),
				(*testRow)(nil),
				(*questionRow)(nil),
			} {
				if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
