package realtime

// DisconnectUser はユーザーの全接続を閉じ、閉じた接続数を返す。
// サーバー側から切断されたときのクライアントの振る舞いを確かめるために使う。
func (h *Hub) DisconnectUser(userID string) int {
	conns := h.members(UserGroup(userID))
	for _, c := range conns {
		h.Unregister(c)
	}
	return len(conns)
}
