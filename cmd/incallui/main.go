// Команда incallui запускает ядро экрана вызова поверх SIP.
package main

func main() {
	Execute()
}
