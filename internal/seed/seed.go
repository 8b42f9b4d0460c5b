// Package seed loads the demo accounts and their idiom sentences.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
)

type UserCreator interface {
	Create(ctx context.Context, input types.NewUser) (types.User, error)
}

type MessageCreator interface {
	Create(ctx context.Context, input types.MessageInput) (types.Message, error)
}

// Account is a demo user together with the messages it owns.
type Account struct {
	User     types.NewUser
	Password string
	Messages []types.MessageInput
}

func idiom(keyPhrase, keyPhraseMeaning, sentence, sentenceMeaning string) types.MessageInput {
	return types.MessageInput{
		SentenceLang:     "en",
		Category:         "idiom",
		KeyPhrase:        keyPhrase,
		KeyPhraseMeaning: keyPhraseMeaning,
		Sentence:         sentence,
		SentenceMeaning:  sentenceMeaning,
	}
}

// Accounts returns the demo data set.
func Accounts() []Account {
	return []Account{
		{
			User:     types.NewUser{Username: "kevin", Email: "kevin@example.com", Role: types.RoleAdmin, Point: 1000},
			Password: "abc1234",
			Messages: []types.MessageInput{
				idiom("apple of one's eye", "apple of one's eye : 매우 소중한 것/사람",
					"His daughter is the apple of his eye", "그의 딸은 그에게 있어서 굉장히 소중한 사람이다."),
			},
		},
		{
			User:     types.NewUser{Username: "aaron", Email: "aaron@example.com", Role: types.RoleNormal},
			Password: "abcd1234",
			Messages: []types.MessageInput{
				idiom("call it a day", "하루를 마무리하다.",
					"It's already 6 o'clock. Let's call it a day.", "벌써 6시야. 자 하루를 마무리 합시다."),
				idiom("a piece of cake", "식은죽 먹기",
					"I thought the final exam to be very difficult, but it turned out a piece of cake.",
					"기말 고사가 굉장히 어려울 것 같았는데, 막상 보니 식은 죽 먹기였어."),
				idiom("hit the sack", "잠자러 가다.",
					"I'm so tired, it's time for me to hit the sack", "너무 피곤해, 나 자야할 시간이야."),
				idiom("face the music", "마주하다, 직면하다, (자신의 행동에 대해) 비난/벌을 받다. 책임을 지다.",
					"If she lied to me, then she'll just have to face the music.",
					"만약 그녀가 나에게 거짓말 했다면, 그녀는 책임져야 할 것이다."),
			},
		},
		{
			User:     types.NewUser{Username: "chrisu", Email: "chrisu@example.com", Role: types.RoleNormal, Point: 20},
			Password: "hello1234",
			Messages: []types.MessageInput{
				idiom("in hot water", "곤란한 상황에 처해 있다.",
					"he stole a car and is in hot water with the law.", "그는 차를 훔쳐 지금 법적 곤경에 빠져있다."),
				idiom("on the ball", "일이 돌아가는 사정을 훤히 꿰고 있다. 잘한다.",
					"The new publicity manager is really on the ball.", "새 홍보부장은 일이 돌아가는 사정을 훤히 꿰고 있다."),
			},
		},
	}
}

// Load creates every account in accounts with its messages, in order, so
// later messages are newer. Accounts that already exist are skipped.
func Load(ctx context.Context, users UserCreator, messages MessageCreator, accounts []Account, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	for _, account := range accounts {
		hash, err := auth.HashPassword(account.Password)
		if err != nil {
			return err
		}
		input := account.User
		input.PasswordHash = hash

		user, err := users.Create(ctx, input)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				logger.Info(ctx, "seed account exists, skipping", "username", input.Username)
				continue
			}
			return fmt.Errorf("create user %s: %w", input.Username, err)
		}

		for _, m := range account.Messages {
			m.From = user.Username
			m.UserID = user.ID
			if _, err := messages.Create(ctx, m); err != nil {
				return fmt.Errorf("create message for %s: %w", user.Username, err)
			}
		}
		logger.Info(ctx, "seeded account", "username", user.Username, "messages", len(account.Messages))
	}
	return nil
}
