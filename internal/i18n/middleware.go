package i18n

import "net/http"

// Middleware injects a localizer into every request context, honoring the
// Accept-Language header with defaultLang as the fallback.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := []string{defaultLang}
			if al := r.Header.Get("Accept-Language"); al != "" {
				langs = []string{al, defaultLang}
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
