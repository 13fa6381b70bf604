package jobs

import (
	"context"

	"opshub/internal/models"
	"opshub/internal/services/livechat"
	"opshub/internal/store"
)

func newLiveChatChats(_ context.Context, integration *models.Integration, deps Deps) (Job, error) {
	accountID, err := integration.Credential("account_id")
	if err != nil {
		return nil, err
	}
	token, err := integration.Credential("access_token")
	if err != nil {
		return nil, err
	}
	client := livechat.NewClient(integration.Setting("base_url", ""), accountID, token, deps.HTTP)
	from := since(integration, deps.now(), 7)

	return JobFunc(func(ctx context.Context, sink store.Sink) (Result, error) {
		var res Result
		now := deps.now()

		fetch := func(ctx context.Context, pageID string) ([]livechat.Chat, string, error) {
			page, err := client.ListArchives(ctx, pageID, from)
			if err != nil {
				return nil, "", err
			}
			return page.Chats, page.NextPageID, nil
		}
		err := drain(ctx, "", fetch, func(chats []livechat.Chat) error {
			res.Fetched += len(chats)
			rows := make([]models.ChatTranscript, len(chats))
			for i := range chats {
				rows[i] = chats[i].ToModel(integration.BusinessCode, now)
			}
			return upsert(ctx, sink, "chat_transcripts", rows, &res)
		})
		return res, err
	}), nil
}
