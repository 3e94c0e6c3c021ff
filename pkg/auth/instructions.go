package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide prints the steps for creating an app-only bearer token
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🔑 X API BEARER TOKEN GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "The collector authenticates with an app-only bearer token (OAuth 2.0).")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📝 STEP 1: Open the developer portal")
	fmt.Fprintln(w, "   - Go to https://developer.x.com/en/portal/dashboard")
	fmt.Fprintln(w, "   - Sign in and create a project with an attached app")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔐 STEP 2: Generate the token")
	fmt.Fprintln(w, "   - Open the app's 'Keys and tokens' tab")
	fmt.Fprintln(w, "   - Under 'Bearer Token' click Generate (or Regenerate)")
	fmt.Fprintln(w, "   - Copy it now; the portal shows it only once")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💾 STEP 3: Give it to twdataset, any one of:")
	fmt.Fprintf(w, "   • export %s=<token>\n", BearerTokenEnv)
	fmt.Fprintln(w, "   • twdataset auth login (stored in the keyring or an encrypted file)")
	fmt.Fprintf(w, "   • a keys file with a '%s' entry holding bearer_token\n", DefaultProfile)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  Full-archive search (/2/tweets/search/all) needs Academic or Pro access.")
	fmt.Fprintln(w, "   Keep twitter.search_endpoint at /2/tweets/search/recent otherwise.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
