package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/match"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/protocol"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

// Handle parses one inbound line and routes it. Replies are written back on
// the caller's session; state errors are logged and dropped without a reply.
func (s *Server) Handle(ctx context.Context, sess *session.Session, line string) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		s.reply(ctx, sess, protocol.ReplyInvalidFormat)
		return
	}

	switch c := cmd.(type) {
	case protocol.Search:
		s.handleSearch(ctx, sess)
	case protocol.Cancel:
		s.queue.Cancel(c.Username)
		s.reply(ctx, sess, protocol.ReplySuccess)
	case protocol.Create:
		s.reply(ctx, sess, s.handleCreate(ctx, sess, c))
	case protocol.Login:
		s.reply(ctx, sess, s.handleLogin(ctx, sess, c))
	case protocol.SaltLookup:
		s.reply(ctx, sess, s.handleSalt(ctx, c))
	case protocol.Relay:
		s.handleRelay(ctx, sess, c)
	case protocol.Lose:
		s.handleLose(ctx, sess, c)
	case protocol.Report:
		s.handleReport(ctx, sess, c)
	case protocol.HighscoreList:
		s.reply(ctx, sess, s.handleHighscores(ctx, c))
	case protocol.Unknown:
		obslog.L().Debug("dispatch_unknown", zap.String("keyword", c.Keyword))
		s.reply(ctx, sess, protocol.ReplyUnknown)
	}
}

func (s *Server) reply(ctx context.Context, sess *session.Session, line string) {
	if line == "" {
		return
	}
	if err := sess.Send(ctx, line); err != nil {
		obslog.L().Warn("reply_error",
			zap.String("session_id", sess.ID()),
			zap.Error(err),
		)
	}
}

func (s *Server) handleSearch(ctx context.Context, sess *session.Session) {
	if !sess.Authenticated() {
		obslog.L().Warn("search_unauthenticated", zap.String("session_id", sess.ID()))
		return
	}
	// The Queue acknowledgement must reach the client before any MATCH_FOUND
	// push, so send it before enqueueing.
	s.reply(ctx, sess, protocol.ReplyQueue)
	s.queue.Enqueue(sess)
}

func (s *Server) handleCreate(ctx context.Context, sess *session.Session, c protocol.Create) string {
	if err := s.store.CreateAccount(ctx, c.Username, c.Hash, c.Salt); err != nil {
		if errors.Is(err, store.ErrPlayerExists) {
			return protocol.ReplyPlayerExists
		}
		obslog.L().Error("account_create_error", zap.String("username", c.Username), zap.Error(err))
		return fmt.Sprintf("Error:%s", err.Error())
	}
	obslog.L().Info("account_create", zap.String("username", c.Username))

	// A fresh account logs the connection straight in.
	if !sess.Authenticated() {
		if err := s.registry.Register(sess, c.Username, store.DefaultRating); err != nil {
			return protocol.ReplyLoggedIn
		}
	}
	return fmt.Sprintf("%s:%d", protocol.ReplySuccess, store.DefaultRating)
}

func (s *Server) handleLogin(ctx context.Context, sess *session.Session, c protocol.Login) string {
	if sess.Authenticated() {
		return protocol.ReplyLoggedIn
	}
	ok, err := s.store.VerifyCredentials(ctx, c.Username, c.Hash)
	if err != nil && !errors.Is(err, store.ErrUnknownPlayer) {
		obslog.L().Error("login_error", zap.String("username", c.Username), zap.Error(err))
		return fmt.Sprintf("Error:%s", err.Error())
	}
	if err != nil || !ok {
		return protocol.ReplyPassword
	}
	ratingVal, err := s.store.Rating(ctx, c.Username)
	if err != nil {
		obslog.L().Error("login_rating_error", zap.String("username", c.Username), zap.Error(err))
		return fmt.Sprintf("Error:%s", err.Error())
	}
	if err := s.registry.Register(sess, c.Username, ratingVal); err != nil {
		return protocol.ReplyLoggedIn
	}
	return fmt.Sprintf("%s%d", protocol.ReplySuccess, ratingVal)
}

func (s *Server) handleSalt(ctx context.Context, c protocol.SaltLookup) string {
	salt, err := s.store.FetchSalt(ctx, c.Username)
	if errors.Is(err, store.ErrUnknownPlayer) {
		return protocol.ReplyUnknownUser
	}
	if err != nil {
		obslog.L().Error("salt_error", zap.String("username", c.Username), zap.Error(err))
		return fmt.Sprintf("Error:%s", err.Error())
	}
	return salt
}

func (s *Server) handleRelay(ctx context.Context, sess *session.Session, c protocol.Relay) {
	m, ok := s.index.Get(sess.ID())
	if !ok || m.ID != c.MatchID {
		obslog.L().Warn("relay_no_match",
			zap.String("session_id", sess.ID()),
			zap.String("match_id", c.MatchID),
		)
		return
	}
	if !m.BeginRelay() {
		obslog.L().Debug("relay_after_resolve", zap.String("match_id", m.ID))
		return
	}
	opponent := m.Opponent(sess.Username())
	if opponent == nil {
		obslog.L().Warn("relay_not_participant",
			zap.String("match_id", m.ID),
			zap.String("username", sess.Username()),
		)
		return
	}
	// Payload stays opaque; it is forwarded verbatim.
	if err := opponent.Send(ctx, fmt.Sprintf("%s:%s", protocol.PushGridUpdate, c.Payload)); err != nil {
		obslog.L().Warn("relay_send_error",
			zap.String("match_id", m.ID),
			zap.String("to", opponent.Username()),
			zap.Error(err),
		)
	}
}

func (s *Server) handleLose(ctx context.Context, sess *session.Session, c protocol.Lose) {
	m, ok := s.index.Get(sess.ID())
	if !ok {
		obslog.L().Warn("lose_no_match", zap.String("session_id", sess.ID()))
		return
	}
	out, resolved := m.Forfeit(sess.Username())
	if !resolved {
		return
	}
	if c.HasScore {
		if err := s.scores.RecordScore(ctx, sess.Username(), c.Score); err != nil {
			obslog.L().Error("lose_score_error", zap.String("username", sess.Username()), zap.Error(err))
		}
	}
	s.resolve(ctx, sess, m, out)
}

func (s *Server) handleReport(ctx context.Context, sess *session.Session, c protocol.Report) {
	m, ok := s.index.Get(sess.ID())
	if !ok {
		obslog.L().Warn("report_no_match", zap.String("session_id", sess.ID()))
		return
	}
	out, resolved := m.ReportScore(sess.Username(), c.Score)
	if !resolved {
		// First report of the pair, or a duplicate; the match stays pending.
		return
	}
	s.resolve(ctx, sess, m, out)
}

func (s *Server) handleHighscores(ctx context.Context, c protocol.HighscoreList) string {
	entries, err := s.scores.Top(ctx, c.Username)
	if err != nil {
		obslog.L().Error("highscores_error", zap.String("username", c.Username), zap.Error(err))
		return fmt.Sprintf("Error:%s", err.Error())
	}
	if entries == nil {
		entries = []store.HighscoreEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Sprintf("Error:%s", err.Error())
	}
	return string(raw)
}

// resolve finishes a decided match: rating update, leaderboard entries,
// index removal and result notifications, exactly once per match. trigger is
// the session whose command (or disconnect) produced the outcome and
// receives any backing-store error reply.
func (s *Server) resolve(ctx context.Context, trigger *session.Session, m *match.Match, out match.Outcome) {
	winner, loser := out.Winner.Username(), out.Loser.Username()

	delta, err := s.ratings.Apply(ctx, winner, loser, out.Tied)
	if err != nil {
		obslog.L().Error("resolve_rating_error", zap.String("match_id", m.ID), zap.Error(err))
		s.reply(ctx, trigger, fmt.Sprintf("Error:%s", err.Error()))
	}

	if out.HasScores {
		if err := s.scores.RecordScore(ctx, winner, out.WinnerScore); err != nil {
			obslog.L().Error("resolve_score_error", zap.String("username", winner), zap.Error(err))
		}
		if err := s.scores.RecordScore(ctx, loser, out.LoserScore); err != nil {
			obslog.L().Error("resolve_score_error", zap.String("username", loser), zap.Error(err))
		}
	}

	s.index.Remove(m)
	m.CloseOut()

	winPush, losePush := protocol.PushMatchWin, protocol.PushMatchLose
	if out.Tied {
		winPush, losePush = protocol.PushTieWin, protocol.PushTieLose
	}
	s.reply(ctx, out.Winner, fmt.Sprintf("%s:%d", winPush, delta))
	s.reply(ctx, out.Loser, fmt.Sprintf("%s:%d", losePush, delta))

	obslog.L().Info("match_resolve",
		zap.String("match_id", m.ID),
		zap.String("winner", winner),
		zap.String("loser", loser),
		zap.Bool("tied", out.Tied),
		zap.Bool("forfeit", out.Forfeit),
		zap.Int("delta", delta),
	)
}
