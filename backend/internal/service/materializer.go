package service

import "github.com/itchan-dev/legorachat/shared/domain"

// MaterializeThreads turns storage digests into the viewer's thread list:
// display name from the other participants, the last message as is,
// most recent activity first. Pure function of its input.
func MaterializeThreads(digests []domain.ThreadDigest) []domain.ThreadSummary {
	threads := make([]domain.ThreadSummary, 0, len(digests))
	for _, d := range digests {
		threads = append(threads, domain.ThreadSummary{
			Id:          d.Id,
			Name:        domain.DisplayName(d.OtherParticipants),
			CreatedAt:   d.CreatedAt,
			LastMessage: d.LastMessage,
		})
	}
	domain.SortByActivity(threads)
	return threads
}
