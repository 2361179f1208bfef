// Package auth holds the pure building blocks of palletkeeper's access
// control: password credentials, the failed-login lockout policy and the
// signed bearer tokens. Nothing here touches the database.
package auth
