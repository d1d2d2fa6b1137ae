package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"autotrader/pkg/crypto"
)

// BasicAuth защищает dashboard API через HTTP Basic Authentication.
//
// Пароль в конфигурации может быть либо bcrypt хэшем (рекомендуется),
// либо открытым текстом. Хэш распознается по префиксу "$2".
// Если credentials не заданы, middleware пропускает все запросы:
// локальное развертывание без аутентификации.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	enabled := username != "" && password != ""
	hashed := strings.HasPrefix(password, "$2")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="autotrader"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1

			var passMatch bool
			if hashed {
				passMatch = crypto.CheckPasswordMatch(pass, password)
			} else {
				passMatch = subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			}

			if !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="autotrader"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
